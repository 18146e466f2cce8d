package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/cart"
	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/platform/httpx"
	"github.com/hanko-field/miniapp/internal/platform/observability"
)

// CartHandlers exposes the cart store to the webview.
type CartHandlers struct {
	store *cart.Store
}

// NewCartHandlers constructs cart handlers over store.
func NewCartHandlers(store *cart.Store) *CartHandlers {
	return &CartHandlers{store: store}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items", h.updateItem)
	r.Delete("/items", h.removeItem)
}

type addItemRequest struct {
	Product  domain.Product `json:"product"`
	Quantity *int           `json:"quantity"`
}

type itemKeyRequest struct {
	ProductID   domain.Scalar `json:"product_id"`
	VariationID domain.Scalar `json:"variation_id"`
	Quantity    *int          `json:"quantity"`
}

type mutationResponse struct {
	Outcome cart.Outcome `json:"outcome"`
	Cart    cart.View    `json:"cart"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.store.View())
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeInvalidBody(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	h.respond(w, r, "add", cart.AddItem(req.Product, quantity))
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	var req itemKeyRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeInvalidBody(w, r, err)
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	h.respond(w, r, "update", cart.SetQuantity(req.ProductID, *req.Quantity, req.VariationID))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	var req itemKeyRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeInvalidBody(w, r, err)
		return
	}
	h.respond(w, r, "remove", cart.RemoveItem(req.ProductID, req.VariationID))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "clear", cart.Clear())
}

// respond applies m and answers with the cart state it produced. Rejected
// mutations are reported in the body, never as an HTTP error.
func (h *CartHandlers) respond(w http.ResponseWriter, r *http.Request, action string, m cart.Mutation) {
	outcome, view := h.store.Apply(r.Context(), m)
	if !outcome.Applied {
		observability.FromContext(r.Context()).Info("cart mutation rejected",
			zap.String("action", action),
			zap.String("reason", string(outcome.Reason)),
		)
	}
	httpx.WriteJSON(w, http.StatusOK, mutationResponse{Outcome: outcome, Cart: view})
}

func writeInvalidBody(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), status))
}
