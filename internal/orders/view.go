package orders

import (
	"context"

	"github.com/tiendago/storefront/internal/catalog"
)

// Reference snapshots embedded in API responses. The backing records are
// owned by collaborators (user service, address book); only reads happen
// here and a missing reference degrades to an id-only order, never an error.

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AddressRef struct {
	ID         string `json:"id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type PaymentMethodRef struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"` // e.g. card, transfer
	Label string `json:"label"`
}

type RefStore interface {
	GetUser(ctx context.Context, id string) (*UserRef, error)
	GetAddress(ctx context.Context, id string) (*AddressRef, error)
	GetPaymentMethod(ctx context.Context, id string) (*PaymentMethodRef, error)
}

type ItemView struct {
	OrderItem
	Product *catalog.Product `json:"product,omitempty"`
}

// View is an order expanded for presentation.
type View struct {
	Order
	Items           []ItemView        `json:"items"`
	User            *UserRef          `json:"user,omitempty"`
	ShippingAddress *AddressRef       `json:"shipping_address,omitempty"`
	PaymentMethod   *PaymentMethodRef `json:"payment_method,omitempty"`
}

type Resolver struct {
	Catalog catalog.Store
	Refs    RefStore
}

func (r *Resolver) Resolve(ctx context.Context, o *Order) *View {
	v := &View{Order: *o, Items: make([]ItemView, 0, len(o.Items))}
	for _, it := range o.Items {
		iv := ItemView{OrderItem: it}
		if r.Catalog != nil {
			if p, err := r.Catalog.Get(ctx, it.ProductID); err == nil {
				iv.Product = p
			}
		}
		v.Items = append(v.Items, iv)
	}
	if r.Refs == nil {
		return v
	}
	if u, err := r.Refs.GetUser(ctx, o.UserID); err == nil {
		v.User = u
	}
	if a, err := r.Refs.GetAddress(ctx, o.ShippingAddressID); err == nil {
		v.ShippingAddress = a
	}
	if pm, err := r.Refs.GetPaymentMethod(ctx, o.PaymentMethodID); err == nil {
		v.PaymentMethod = pm
	}
	return v
}
