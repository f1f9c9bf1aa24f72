package orders

import (
	"encoding/json"
	"time"

	"github.com/tiendago/storefront/internal/inventory"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
	EventStatusChanged  = "OrderStatusChanged"
	EventStockRejected  = "OrderStockRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	Items      []OrderItem `json:"items"`
	TotalCents int         `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID       string        `json:"order_id"`
	UserID        string        `json:"user_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Items         []OrderItem   `json:"items"` // quantities restored to stock
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Old     Status `json:"old"`
	New     Status `json:"new"`
}

type StockRejectedPayload struct {
	UserID  string                  `json:"user_id"`
	Reason  string                  `json:"reason"` // e.g. OUT_OF_STOCK
	Details []*inventory.StockError `json:"details,omitempty"`
}
