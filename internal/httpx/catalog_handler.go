package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	CreateReview(ctx context.Context, rv catalog.Review) (catalog.Review, error)
	ListReviews(ctx context.Context, productID string) ([]catalog.Review, error)
}

type CatalogHandler struct {
	Catalog Catalog
}

type reviewReq struct {
	Rating  int    `form:"rating" json:"rating" validate:"required,min=1,max=5"`
	Comment string `form:"comment" json:"comment" validate:"max=2000"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/products/{id}/reviews", h.listReviews)
	r.With(auth.RequireUser).Post("/products/{id}/reviews", h.createReview)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", catalog.ErrProductNotFound)
	if !ok {
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", catalog.ErrProductNotFound)
	if !ok {
		return
	}
	rs, err := h.Catalog.ListReviews(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *CatalogHandler) createReview(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id", catalog.ErrProductNotFound)
	if !ok {
		return
	}
	var req reviewReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	req.Comment = strings.TrimSpace(req.Comment)
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	rv, err := h.Catalog.CreateReview(r.Context(), catalog.Review{
		ProductID: productID,
		UserID:    userID(r),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
