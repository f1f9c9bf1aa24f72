package orders

import "time"

type OrderItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	// PriceCents is the catalog price captured when the order was created.
	// It is never re-read from the catalog afterwards.
	PriceCents int `json:"price_cents"`
}

type Order struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Items             []OrderItem   `json:"items"`
	ShippingAddressID string        `json:"shipping_address_id"`
	PaymentMethodID   string        `json:"payment_method_id"`
	ShippingCostCents int           `json:"shipping_cost_cents"`
	TotalCents        int           `json:"total_cents"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
