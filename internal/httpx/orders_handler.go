package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tiendago/storefront/internal/catalog"
	"github.com/tiendago/storefront/internal/inventory"
	"github.com/tiendago/storefront/internal/metrics"
	"github.com/tiendago/storefront/internal/orders"
	"github.com/tiendago/storefront/internal/redisx"
)

type OrdersHandler struct {
	Svc      *orders.Service
	Catalog  catalog.Store
	Redis    *redis.Client // optional; response cache only
	Metrics  *metrics.OrderMetrics
	Identity IdentityFunc
}

type itemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	// PriceCents is accepted for wire compatibility but always discarded;
	// the catalog price at reservation time wins.
	PriceCents int `json:"price_cents"`
}

type createOrderReq struct {
	UserID            string    `json:"user_id"`
	Items             []itemReq `json:"items"`
	ShippingAddressID string    `json:"shipping_address_id"`
	PaymentMethodID   string    `json:"payment_method_id"`
	ShippingCostCents int       `json:"shipping_cost_cents"`
}

type updateOrderReq struct {
	Status            *orders.Status        `json:"status"`
	PaymentStatus     *orders.PaymentStatus `json:"payment_status"`
	ShippingCostCents *int                  `json:"shipping_cost_cents"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	idf := h.Identity
	if idf == nil {
		idf = HeaderIdentity
	}
	ins := func(name string, fn http.HandlerFunc) http.HandlerFunc {
		return Instrument(h.Metrics, name, fn)
	}

	r.Get("/products", ins("list_products", h.listProducts))

	r.Post("/orders", ins("create_order", requireUser(idf, h.createOrder)))
	r.Get("/orders", ins("list_orders", requireAdmin(idf, h.listOrders)))
	r.Get("/orders/user/{userId}", ins("list_orders_by_user", requireUser(idf, h.listOrdersByUser)))
	r.Get("/orders/{id}", ins("get_order", requireUser(idf, h.getOrder)))
	r.Patch("/orders/{id}/cancel", ins("cancel_order", requireAdmin(idf, h.cancelOrder)))
	r.Patch("/orders/{id}/status", ins("update_status", requireAdmin(idf, h.updateStatus)))
	r.Patch("/orders/{id}/payment-status", ins("update_payment_status", requireAdmin(idf, h.updatePaymentStatus)))
	r.Put("/orders/{id}", ins("update_order", requireAdmin(idf, h.updateOrder)))
	r.Delete("/orders/{id}", ins("delete_order", requireAdmin(idf, h.deleteOrder)))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, err error) {
	var sce *orders.StockCheckError
	switch {
	case errors.As(err, &sce):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": sce.Error(),
			"errors":  sce.Details,
		})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, orders.ErrNotCancellable),
		errors.Is(err, orders.ErrNotDeletable),
		errors.Is(err, orders.ErrNoUpdatableFields),
		errors.Is(err, orders.ErrBadTransition):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		// reservation or compensation failures land here: the caller must
		// see them, stock bookkeeping may need an operator
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if msg := validateCreate(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines := make([]inventory.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Qty})
	}
	view, err := h.Svc.CreateOrder(ctx, orders.CreateInput{
		UserID:            req.UserID,
		Lines:             lines,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethodID:   req.PaymentMethodID,
		ShippingCostCents: req.ShippingCostCents,
		TraceID:           r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func validateCreate(req createOrderReq) string {
	if req.UserID == "" {
		return "user_id is required"
	}
	if len(req.Items) == 0 {
		return "items must be a non-empty array"
	}
	for _, it := range req.Items {
		if it.ProductID == "" {
			return "items[].product_id is required"
		}
		if it.Qty < 1 {
			return fmt.Sprintf("invalid qty for product %s", it.ProductID)
		}
		if it.PriceCents < 0 {
			return fmt.Sprintf("invalid price for product %s", it.ProductID)
		}
	}
	if req.ShippingAddressID == "" {
		return "shipping_address_id is required"
	}
	if req.PaymentMethodID == "" {
		return "payment_method_id is required"
	}
	if req.ShippingCostCents < 0 {
		return "shipping_cost_cents must be >= 0"
	}
	return ""
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first
	key := fmt.Sprintf(redisx.KeyOrderView, id)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	view, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.Redis != nil {
		if b, err := json.Marshal(view); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLOrderView).Err()
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := h.Svc.ListOrders(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) listOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := h.Svc.ListOrdersByUser(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.Svc.CancelOrder(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully. Stock has been restored.",
		"order":   view,
	})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status orders.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !orders.ValidStatus(body.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Svc.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		PaymentStatus orders.PaymentStatus `json:"payment_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !orders.ValidPaymentStatus(body.PaymentStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Svc.UpdatePaymentStatus(ctx, id, body.PaymentStatus)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Status != nil && !orders.ValidStatus(*req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	if req.PaymentStatus != nil && !orders.ValidPaymentStatus(*req.PaymentStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment status"})
		return
	}
	if req.ShippingCostCents != nil && *req.ShippingCostCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shipping_cost_cents must be >= 0"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Svc.UpdateOrder(ctx, id, orders.Update{
		Status:            req.Status,
		PaymentStatus:     req.PaymentStatus,
		ShippingCostCents: req.ShippingCostCents,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Svc.DeleteOrder(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(ctx, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) invalidate(ctx context.Context, id string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderView, id)).Err()
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, id)).Err()
}
