package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errRefNotFound = errors.New("reference not found")

// PGRefStore reads the collaborator-owned reference tables. Write access to
// these tables lives elsewhere.
type PGRefStore struct{ DB *pgxpool.Pool }

func (s *PGRefStore) GetUser(ctx context.Context, id string) (*UserRef, error) {
	var u UserRef
	err := s.DB.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errRefNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGRefStore) GetAddress(ctx context.Context, id string) (*AddressRef, error) {
	var a AddressRef
	err := s.DB.QueryRow(ctx, `
		SELECT id, street, city, postal_code, country
		FROM shipping_addresses WHERE id=$1`, id).
		Scan(&a.ID, &a.Street, &a.City, &a.PostalCode, &a.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errRefNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PGRefStore) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethodRef, error) {
	var pm PaymentMethodRef
	err := s.DB.QueryRow(ctx, `SELECT id, kind, label FROM payment_methods WHERE id=$1`, id).
		Scan(&pm.ID, &pm.Kind, &pm.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errRefNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}
