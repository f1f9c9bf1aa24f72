package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tiendago/storefront/internal/inventory"
	kafkax "github.com/tiendago/storefront/internal/kafka"
	"github.com/tiendago/storefront/internal/metrics"
)

var (
	ErrNotCancellable    = errors.New("order cannot be cancelled in its current status")
	ErrNotDeletable      = errors.New("only cancelled orders can be deleted")
	ErrNoUpdatableFields = errors.New("at least one field must be provided for update")
	ErrBadTransition     = errors.New("status transition not allowed")
)

// StockCheckError aggregates every failed line of an availability check so
// the caller sees all problems in one round trip.
type StockCheckError struct {
	Details []*inventory.StockError
}

func (e *StockCheckError) Error() string { return "cannot create order due to stock issues" }

// Publishers holds the per-topic event producers. Any of them may be nil,
// in which case the event is dropped; order state never depends on a
// publish succeeding.
type Publishers struct {
	Created       *kafkax.Producer
	Cancelled     *kafkax.Producer
	StatusChanged *kafkax.Producer
	StockRejected *kafkax.Producer
}

type CreateInput struct {
	UserID            string
	Lines             []inventory.Line
	ShippingAddressID string
	PaymentMethodID   string
	ShippingCostCents int
	TraceID           string
}

// Service sequences availability check, reservation commit, pricing and
// persistence. An order exists if and only if the whole reservation
// committed; any partial commit is compensated before the caller sees an
// error.
type Service struct {
	Orders      Store
	Engine      *inventory.Engine
	Resolver    *Resolver
	Events      Publishers
	Metrics     *metrics.OrderMetrics
	Log         *zap.Logger
	ServiceName string
}

func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*View, error) {
	results, err := s.Engine.CheckAvailability(ctx, in.Lines)
	if err != nil {
		return nil, err
	}
	if fails := inventory.Failures(results); len(fails) > 0 {
		if s.Metrics != nil {
			s.Metrics.StockRejections.Inc()
		}
		s.publish(s.Events.StockRejected, EventStockRejected, "", in.TraceID,
			StockRejectedPayload{UserID: in.UserID, Reason: "OUT_OF_STOCK", Details: fails})
		return nil, &StockCheckError{Details: fails}
	}

	committed, err := s.Engine.CommitReservation(ctx, in.Lines)
	if err != nil {
		if errors.Is(err, inventory.ErrReservationFailed) && s.Metrics != nil {
			s.Metrics.ReservationConflicts.Inc()
		}
		return nil, err
	}

	// prices from the catalog snapshots taken during the check; whatever the
	// client sent was dropped at the edge
	items := make([]OrderItem, 0, len(results))
	for _, r := range results {
		items = append(items, OrderItem{
			ProductID:  r.Line.ProductID,
			Qty:        r.Line.Qty,
			PriceCents: r.Product.PriceCents,
		})
	}

	now := time.Now().UTC()
	order := &Order{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		Items:             items,
		ShippingAddressID: in.ShippingAddressID,
		PaymentMethodID:   in.PaymentMethodID,
		ShippingCostCents: in.ShippingCostCents,
		TotalCents:        Total(items, in.ShippingCostCents),
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Orders.Insert(ctx, order); err != nil {
		// stock must not stay decremented without an order behind it
		if cerr := s.Engine.Compensate(ctx, committed); cerr != nil {
			return nil, fmt.Errorf("persist order: %v; compensation also failed: %w", err, cerr)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if s.Metrics != nil {
		s.Metrics.OrdersCreated.Inc()
	}
	s.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("total_cents", order.TotalCents),
		zap.Int("lines", len(order.Items)))
	s.publish(s.Events.Created, EventOrderCreated, order.ID, in.TraceID, OrderCreatedPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Items:      order.Items,
		TotalCents: order.TotalCents,
	})
	return s.Resolver.Resolve(ctx, order), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*View, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Resolver.Resolve(ctx, o), nil
}

func (s *Service) ListOrders(ctx context.Context) ([]*View, error) {
	os, err := s.Orders.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, os), nil
}

func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*View, error) {
	os, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, os), nil
}

func (s *Service) resolveAll(ctx context.Context, os []Order) []*View {
	out := make([]*View, 0, len(os))
	for i := range os {
		out = append(out, s.Resolver.Resolve(ctx, &os[i]))
	}
	return out
}

// CancelOrder restores stock and transitions the order. If the restore
// fails for any line the order is left untouched.
func (s *Service) CancelOrder(ctx context.Context, id string) (*View, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanCancel(o.Status) {
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, o.Status)
	}

	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Qty})
	}
	if err := s.Engine.Restore(ctx, lines); err != nil {
		return nil, fmt.Errorf("restore stock for order %s: %w", id, err)
	}

	st := StatusCancelled
	pay := CancelPayment(o.PaymentStatus)
	updated, err := s.Orders.Update(ctx, id, Update{Status: &st, PaymentStatus: &pay})
	if err != nil {
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.OrdersCancelled.Inc()
	}
	s.Log.Info("order cancelled",
		zap.String("order_id", id),
		zap.String("payment_status", string(pay)))
	s.publish(s.Events.Cancelled, EventOrderCancelled, id, "", OrderCancelledPayload{
		OrderID:       id,
		UserID:        updated.UserID,
		PaymentStatus: updated.PaymentStatus,
		Items:         updated.Items,
	})
	return s.Resolver.Resolve(ctx, updated), nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, st Status) (*View, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, st) {
		return nil, fmt.Errorf("%w: %s to %s", ErrBadTransition, o.Status, st)
	}
	updated, err := s.Orders.Update(ctx, id, Update{Status: &st})
	if err != nil {
		return nil, err
	}
	s.publish(s.Events.StatusChanged, EventStatusChanged, id, "", StatusChangedPayload{
		OrderID: id, Old: o.Status, New: st,
	})
	return s.Resolver.Resolve(ctx, updated), nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, p PaymentStatus) (*View, error) {
	updated, err := s.Orders.Update(ctx, id, Update{PaymentStatus: &p})
	if err != nil {
		return nil, err
	}
	return s.Resolver.Resolve(ctx, updated), nil
}

// UpdateOrder applies an allow-listed partial update. A shipping cost change
// re-derives the total from the order's captured line prices, never from the
// catalog.
func (s *Service) UpdateOrder(ctx context.Context, id string, u Update) (*View, error) {
	u.TotalCents = nil // derived here, never caller-supplied
	if u.Empty() {
		return nil, ErrNoUpdatableFields
	}
	if u.ShippingCostCents != nil {
		o, err := s.Orders.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		total := Total(o.Items, *u.ShippingCostCents)
		u.TotalCents = &total
	}
	updated, err := s.Orders.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if u.Status != nil {
		s.publish(s.Events.StatusChanged, EventStatusChanged, id, "", StatusChangedPayload{
			OrderID: id, New: *u.Status,
		})
	}
	return s.Resolver.Resolve(ctx, updated), nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanDelete(o.Status) {
		return fmt.Errorf("%w: status is %s", ErrNotDeletable, o.Status)
	}
	return s.Orders.Delete(ctx, id)
}

func (s *Service) publish(p *kafkax.Producer, eventType, orderID, trace string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	key := PartitionKey(orderID)
	if orderID == "" {
		key = PartitionKey(ev.EventID)
	}
	p.Publish(key, kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
