package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Cart interface {
	Lines(ctx context.Context, userID string) ([]cart.Line, error)
	Add(ctx context.Context, userID, productID, variationID string, qty int) (cart.Line, error)
	SetQty(ctx context.Context, userID, lineID string, qty int) error
	Remove(ctx context.Context, userID, lineID string) error
}

type Wallet interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
}

// CartHandler serves the cart and the store-credit wallet.
type CartHandler struct {
	Cart   Cart
	Wallet Wallet
}

type addLineReq struct {
	ProductID   string `form:"product_id" json:"product_id" validate:"required,uuid"`
	VariationID string `form:"variation_id" json:"variation_id" validate:"omitempty,uuid"`
	Qty         int    `form:"qty" json:"qty" validate:"required,min=1,max=999"`
}

type setQtyReq struct {
	Qty int `form:"qty" json:"qty" validate:"required,min=1,max=999"`
}

type fundsReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceResp struct {
	Balance decimal.Decimal `json:"balance"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/cart", h.lines)
		r.Post("/cart", h.add)
		r.Patch("/cart/{lineID}", h.setQty)
		r.Delete("/cart/{lineID}", h.remove)
		r.Get("/wallet", h.balance)
		r.Post("/wallet/funds", h.addFunds)
	})
}

func (h *CartHandler) lines(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Cart.Lines(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if ls == nil {
		ls = []cart.Line{}
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	l, err := h.Cart.Add(r.Context(), userID(r), req.ProductID, req.VariationID, req.Qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *CartHandler) setQty(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineID", cart.ErrLineNotFound)
	if !ok {
		return
	}
	var req setQtyReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Cart.SetQty(r.Context(), userID(r), lineID, req.Qty); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineID", cart.ErrLineNotFound)
	if !ok {
		return
	}
	if err := h.Cart.Remove(r.Context(), userID(r), lineID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Wallet.Balance(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResp{Balance: b})
}

func (h *CartHandler) addFunds(w http.ResponseWriter, r *http.Request) {
	var req fundsReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	if !req.Amount.IsPositive() || req.Amount.GreaterThan(wallet.MaxTopUp) {
		writeError(w, &orders.ValidationError{Fields: map[string]string{
			"amount": "must be between 0 and " + wallet.MaxTopUp.String(),
		}})
		return
	}
	// balances are NUMERIC(12,2); finer amounts would be rounded away
	if !req.Amount.Equal(req.Amount.Truncate(2)) {
		writeError(w, &orders.ValidationError{Fields: map[string]string{"amount": "must have at most 2 decimal places"}})
		return
	}
	uid := userID(r)
	if err := h.Wallet.Credit(r.Context(), uid, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.Wallet.Balance(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResp{Balance: b})
}
