package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiendago/storefront/internal/catalog"
	"github.com/tiendago/storefront/internal/inventory"
)

func newTestService(products ...catalog.Product) (*Service, *catalog.MemStore, *MemStore) {
	cat := catalog.NewMemStore(products...)
	st := NewMemStore()
	svc := &Service{
		Orders:      st,
		Engine:      inventory.NewEngine(cat, zap.NewNop()),
		Resolver:    &Resolver{Catalog: cat},
		Log:         zap.NewNop(),
		ServiceName: "test",
	}
	return svc, cat, st
}

func createInput(lines ...inventory.Line) CreateInput {
	return CreateInput{
		UserID:            "u1",
		Lines:             lines,
		ShippingAddressID: "addr1",
		PaymentMethodID:   "pm1",
		ShippingCostCents: 500,
	}
}

func TestCreateOrderHappyPath(t *testing.T) {
	svc, cat, _ := newTestService(catalog.Product{ID: "p1", Name: "keyboard", PriceCents: 4500, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 3}))
	require.NoError(t, err)

	assert.Equal(t, 2, cat.Stock("p1"))
	assert.Equal(t, StatusPending, view.Status)
	assert.Equal(t, PaymentPending, view.PaymentStatus)
	assert.Equal(t, 3*4500+500, view.TotalCents)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 4500, view.Items[0].PriceCents, "line price is the catalog price")
	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, "keyboard", view.Items[0].Product.Name)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	svc, cat, st := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 2})

	_, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 3}))

	var sce *StockCheckError
	require.ErrorAs(t, err, &sce)
	require.Len(t, sce.Details, 1)
	assert.Equal(t, "p1", sce.Details[0].ProductID)
	assert.Equal(t, 2, sce.Details[0].Available)
	assert.Equal(t, 3, sce.Details[0].Requested)

	assert.Equal(t, 2, cat.Stock("p1"), "stock untouched on a failed check")
	all, _ := st.List(context.Background())
	assert.Empty(t, all, "no order persisted")
}

func TestCreateOrderAggregatesAllStockProblems(t *testing.T) {
	svc, _, _ := newTestService(
		catalog.Product{ID: "p1", PriceCents: 1000, Stock: 0},
		catalog.Product{ID: "p2", PriceCents: 2000, Stock: 10},
	)

	_, err := svc.CreateOrder(context.Background(), createInput(
		inventory.Line{ProductID: "p1", Qty: 1},
		inventory.Line{ProductID: "p2", Qty: 1},
		inventory.Line{ProductID: "missing", Qty: 1},
	))

	var sce *StockCheckError
	require.ErrorAs(t, err, &sce)
	require.Len(t, sce.Details, 2)
	assert.False(t, sce.Details[0].NotFound)
	assert.True(t, sce.Details[1].NotFound)
}

func TestCreateOrderCommitFailureCompensates(t *testing.T) {
	svc, cat, st := newTestService(
		catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5},
		catalog.Product{ID: "p2", PriceCents: 2000, Stock: 5},
	)
	cat.FailDecrement["p2"] = errors.New("write timeout")

	_, err := svc.CreateOrder(context.Background(), createInput(
		inventory.Line{ProductID: "p1", Qty: 2},
		inventory.Line{ProductID: "p2", Qty: 2},
	))
	require.ErrorIs(t, err, inventory.ErrReservationFailed)

	assert.Equal(t, 5, cat.Stock("p1"), "committed line was credited back")
	assert.Equal(t, 5, cat.Stock("p2"))
	all, _ := st.List(context.Background())
	assert.Empty(t, all)
}

func TestCreateOrderPersistFailureCompensates(t *testing.T) {
	svc, cat, st := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})
	st.FailInsert = errors.New("db down")

	_, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 3}))
	require.Error(t, err)

	assert.Equal(t, 5, cat.Stock("p1"), "stock never stays decremented without an order")
}

func TestLinePricesAreSnapshots(t *testing.T) {
	svc, _, _ := newTestService(catalog.Product{ID: "p1", Name: "keyboard", PriceCents: 4500, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	// catalog price changes after the fact
	svc.Resolver.Catalog = catalog.NewMemStore(
		catalog.Product{ID: "p1", Name: "keyboard", PriceCents: 9900, Stock: 4})

	got, err := svc.GetOrder(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, 4500, got.Items[0].PriceCents)
	assert.Equal(t, 4500+500, got.TotalCents)
}

func TestCancelRefundsPaidOrder(t *testing.T) {
	svc, cat, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 3}))
	require.NoError(t, err)
	require.Equal(t, 2, cat.Stock("p1"))

	paid := PaymentPaid
	_, err = svc.Orders.Update(context.Background(), view.ID, Update{PaymentStatus: &paid})
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, 5, cat.Stock("p1"), "cancelled quantities return to stock")
}

func TestCancelUnpaidOrderMarksPaymentFailed(t *testing.T) {
	svc, _, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, cancelled.PaymentStatus)
}

func TestCancelGuardRejectsTerminalStates(t *testing.T) {
	svc, cat, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)

	delivered := StatusDelivered
	_, err = svc.Orders.Update(context.Background(), view.ID, Update{Status: &delivered})
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), view.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 3, cat.Stock("p1"), "no stock movement on a rejected cancel")

	got, _ := svc.Orders.Get(context.Background(), view.ID)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestCancelIsNotRepeatable(t *testing.T) {
	svc, cat, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)

	_, err = svc.CancelOrder(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, 5, cat.Stock("p1"))

	_, err = svc.CancelOrder(context.Background(), view.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 5, cat.Stock("p1"), "second cancel must not restore stock twice")
}

func TestCancelAbortsWhenRestoreFails(t *testing.T) {
	svc, cat, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)

	cat.FailIncrement["p1"] = errors.New("restore timeout")
	_, err = svc.CancelOrder(context.Background(), view.ID)
	require.Error(t, err)

	got, _ := svc.Orders.Get(context.Background(), view.ID)
	assert.Equal(t, StatusPending, got.Status, "order unchanged when restore fails")
	assert.Equal(t, PaymentPending, got.PaymentStatus)
}

func TestDeleteOnlyCancelledOrders(t *testing.T) {
	svc, _, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	err = svc.DeleteOrder(context.Background(), view.ID)
	require.ErrorIs(t, err, ErrNotDeletable)

	_, err = svc.CancelOrder(context.Background(), view.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(context.Background(), view.ID))
	_, err = svc.Orders.Get(context.Background(), view.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrderRepricesOnShippingChange(t *testing.T) {
	svc, _, _ := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 5})

	view, err := svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 2}))
	require.NoError(t, err)
	require.Equal(t, 2500, view.TotalCents)

	ship := 900
	updated, err := svc.UpdateOrder(context.Background(), view.ID, Update{ShippingCostCents: &ship})
	require.NoError(t, err)
	assert.Equal(t, 2900, updated.TotalCents, "total re-derived from stored line prices")
}

func TestUpdateOrderRejectsEmptyPatch(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateOrder(context.Background(), "whatever", Update{})
	require.ErrorIs(t, err, ErrNoUpdatableFields)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.UpdateStatus(context.Background(), "missing", StatusShipped)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentCreateLastUnit(t *testing.T) {
	svc, cat, st := newTestService(catalog.Product{ID: "p1", PriceCents: 1000, Stock: 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrder(context.Background(), createInput(inventory.Line{ProductID: "p1", Qty: 1}))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent order wins the last unit")
	assert.Equal(t, 0, cat.Stock("p1"))
	all, _ := st.List(context.Background())
	assert.Len(t, all, 1)
}
