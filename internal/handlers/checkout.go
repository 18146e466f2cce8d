package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/cart"
	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/platform/httpx"
	"github.com/hanko-field/miniapp/internal/platform/observability"
	"github.com/hanko-field/miniapp/internal/storefront"
)

// OrderCreator submits orders to the storefront.
type OrderCreator interface {
	CreateOrder(ctx context.Context, payload *domain.OrderRequest, initData string) (domain.Order, error)
}

// CheckoutHandlers turns the current cart into an order.
type CheckoutHandlers struct {
	store  *cart.Store
	orders OrderCreator
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(store *cart.Store, orders OrderCreator) *CheckoutHandlers {
	return &CheckoutHandlers{store: store, orders: orders}
}

// Routes wires the /checkout endpoint onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	r.Post("/", h.checkout)
}

type checkoutRequest struct {
	CustomerNote string `json:"customer_note"`
}

type checkoutResponse struct {
	Order domain.Order `json:"order"`
	Cart  cart.View    `json:"cart"`
}

func (h *CheckoutHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req checkoutRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeInvalidBody(w, r, err)
		return
	}

	payload := &domain.OrderRequest{
		LineItems:    h.store.LineItems(),
		CustomerNote: strings.TrimSpace(req.CustomerNote),
	}
	order, err := h.orders.CreateOrder(ctx, payload, r.Header.Get(storefront.InitDataHeader))
	if err != nil {
		writeStorefrontError(w, r, err)
		return
	}

	// Only the submitted lines leave the cart; units added meanwhile stay.
	_, view := h.store.Apply(ctx, cart.RemoveOrdered(payload.LineItems))
	observability.FromContext(ctx).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int("line_items", len(payload.LineItems)),
		zap.Int("left_in_cart", view.TotalItems),
	)
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{Order: order, Cart: view})
}

// writeStorefrontError relays a normalised storefront failure. Upstream
// statuses pass through, validation failures are 400 and everything else 502.
func writeStorefrontError(w http.ResponseWriter, r *http.Request, err error) {
	var sfErr *storefront.Error
	if !errors.As(err, &sfErr) {
		httpx.WriteError(r.Context(), w, httpx.NewError("upstream_error", storefront.MessageGeneric, http.StatusBadGateway))
		return
	}

	status := sfErr.Status
	switch {
	case sfErr.Kind == storefront.KindValidation:
		status = http.StatusBadRequest
	case sfErr.Kind != storefront.KindHTTP || status == 0:
		status = http.StatusBadGateway
	}

	observability.FromContext(r.Context()).Warn("storefront call failed",
		zap.String("kind", string(sfErr.Kind)),
		zap.Int("upstream_status", sfErr.Status),
		zap.String("message", sfErr.Message),
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(sfErr.Body)
}
