package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/miniapp/internal/domain"
	"github.com/hanko-field/miniapp/internal/platform/httpx"
)

// Catalog is the storefront surface the bridge relays to.
type Catalog interface {
	FetchProducts(ctx context.Context, params url.Values) ([]domain.Product, error)
	FetchProductByID(ctx context.Context, id domain.Scalar) (domain.Product, error)
	FetchCategories(ctx context.Context, params url.Values) ([]domain.Category, error)
}

// CatalogHandlers relays product and category listings.
type CatalogHandlers struct {
	catalog Catalog
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(catalog Catalog) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires /products and /categories onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.FetchProducts(r.Context(), r.URL.Query())
	if err != nil {
		writeStorefrontError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, products)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id := domain.ParseScalar(chi.URLParam(r, "productID"))
	product, err := h.catalog.FetchProductByID(r.Context(), id)
	if err != nil {
		writeStorefrontError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, product)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.FetchCategories(r.Context(), r.URL.Query())
	if err != nil {
		writeStorefrontError(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	httpx.WriteJSON(w, http.StatusOK, categories)
}
