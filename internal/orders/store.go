package orders

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("order not found")

// Update carries the allow-listed mutable fields. A nil field is left
// untouched. TotalCents is derived by the service when shipping changes and
// is never taken from a caller directly.
type Update struct {
	Status            *Status
	PaymentStatus     *PaymentStatus
	ShippingCostCents *int
	TotalCents        *int
}

func (u Update) Empty() bool {
	return u.Status == nil && u.PaymentStatus == nil && u.ShippingCostCents == nil && u.TotalCents == nil
}

type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Update(ctx context.Context, id string, u Update) (*Order, error)
	Delete(ctx context.Context, id string) error
}
