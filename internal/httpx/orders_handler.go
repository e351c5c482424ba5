package httpx

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
)

// OrderService is the write side: checkout and status transitions.
type OrderService interface {
	PlaceOrder(ctx context.Context, req orders.CheckoutRequest) (*orders.Order, error)
	Cancel(ctx context.Context, userID, orderID, reason string) (*orders.Order, error)
	RequestReturn(ctx context.Context, userID, orderID, reason string) (*orders.Order, error)
	Refund(ctx context.Context, userID, orderID string) (*orders.Order, error)
	Advance(ctx context.Context, orderID string, to orders.Status, note string) (*orders.Order, error)
}

// OrderReader is the read side, straight from Postgres.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	Detail(ctx context.Context, userID, orderID string) (orders.Detail, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
	Invalidate(ctx context.Context, orderID string) error
}

type CheckoutGuard interface {
	Claim(ctx context.Context, userID, token string) (claimed bool, orderID string, err error)
	Complete(ctx context.Context, userID, token, orderID string) error
	Release(ctx context.Context, userID, token string) error
}

// OperationRecorder is satisfied by *metrics.Metrics.
type OperationRecorder interface {
	OrderOperation(operation, outcome string)
}

type OrdersHandler struct {
	Orders  OrderService
	Reader  OrderReader
	Cache   StatusCache   // optional
	Guard   CheckoutGuard // optional
	Metrics OperationRecorder
	Timeout time.Duration
}

type placedResp struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status,omitempty"`
	Order      *orders.Order `json:"order,omitempty"`
	Idempotent bool          `json:"idempotent"`
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type advanceReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type statusResp struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.list)
		r.Get("/orders/{id}", h.detail)
		r.Get("/orders/{id}/status", h.status)
		r.Post("/orders/{id}/cancel", h.cancel)
		r.Post("/orders/{id}/return", h.requestReturn)
		r.Post("/orders/{id}/refund", h.refund)
	})
	r.With(auth.RequireOperator).Post("/admin/orders/{id}/status", h.advance)
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 5 * time.Second
}

func (h *OrdersHandler) record(op string, err error) {
	if h.Metrics != nil {
		h.Metrics.OrderOperation(op, kindLabel(err))
	}
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	req, fromForm, err := decodeCheckout(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	req.UserID = userID(r)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	guarded := false
	if req.CheckoutToken != "" && h.Guard != nil {
		claimed, existing, err := h.Guard.Claim(ctx, req.UserID, req.CheckoutToken)
		switch {
		case err != nil:
			// Redis down: the row locks still stop a double order
			log.Printf("checkout guard claim: %v", err)
		case !claimed && existing != "":
			h.placed(w, r, fromForm, placedResp{OrderID: existing, Idempotent: true}, http.StatusOK)
			return
		case !claimed:
			writeJSON(w, http.StatusConflict, errorBody{Error: "checkout already in progress", Code: "in_progress"})
			return
		default:
			guarded = true
		}
	}

	o, err := h.Orders.PlaceOrder(ctx, req)
	h.record("checkout", err)
	if err != nil {
		if guarded {
			_ = h.Guard.Release(context.WithoutCancel(ctx), req.UserID, req.CheckoutToken)
		}
		writeError(w, err)
		return
	}
	if guarded {
		if err := h.Guard.Complete(ctx, req.UserID, req.CheckoutToken, o.ID); err != nil {
			log.Printf("checkout guard complete order=%s: %v", o.ID, err)
		}
	}
	if h.Cache != nil {
		_ = h.Cache.Set(ctx, o.ID, redisx.CachedStatus{UserID: o.UserID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
	}
	h.placed(w, r, fromForm, placedResp{OrderID: o.ID, Status: o.Status, Order: o}, http.StatusCreated)
}

// placed answers a form post with a redirect to the confirmation page and
// an API call with the body.
func (h *OrdersHandler) placed(w http.ResponseWriter, r *http.Request, fromForm bool, resp placedResp, code int) {
	if fromForm {
		http.Redirect(w, r, "/orders/"+resp.OrderID, http.StatusSeeOther)
		return
	}
	writeJSON(w, code, resp)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reader.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", orders.ErrNotFound)
	if !ok {
		return
	}
	d, err := h.Reader.Detail(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// status reads the cache first and falls back to Postgres on a miss,
// a foreign owner or a Redis error.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "id", orders.ErrNotFound)
	if !ok {
		return
	}
	uid := userID(r)

	if h.Cache != nil {
		if cs, ok, err := h.Cache.Get(ctx, id); err == nil && ok && cs.UserID == uid {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: cs.Status, UpdatedAt: cs.UpdatedAt, Source: "cache"})
			return
		}
	}

	o, err := h.Reader.Get(ctx, id)
	if err == nil && o.UserID != uid {
		err = orders.ErrNotFound
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.Set(ctx, id, redisx.CachedStatus{UserID: o.UserID, Status: string(o.Status), UpdatedAt: o.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: string(o.Status), UpdatedAt: o.UpdatedAt, Source: "db"})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", func(ctx context.Context, uid, id, reason string) (*orders.Order, error) {
		return h.Orders.Cancel(ctx, uid, id, reason)
	})
}

func (h *OrdersHandler) requestReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "return", func(ctx context.Context, uid, id, reason string) (*orders.Order, error) {
		return h.Orders.RequestReturn(ctx, uid, id, reason)
	})
}

func (h *OrdersHandler) refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "refund", func(ctx context.Context, uid, id, _ string) (*orders.Order, error) {
		return h.Orders.Refund(ctx, uid, id)
	})
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, uid, id, reason string) (*orders.Order, error)) {
	id, ok := pathID(w, r, "id", orders.ErrNotFound)
	if !ok {
		return
	}
	var req reasonReq
	switch {
	case isJSON(r) && r.ContentLength != 0:
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
			return
		}
	case !isJSON(r):
		req.Reason = r.PostFormValue("reason")
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	o, err := fn(ctx, userID(r), id, req.Reason)
	h.record(op, err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, o.ID)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) advance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", orders.ErrNotFound)
	if !ok {
		return
	}
	var req advanceReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, &orders.ValidationError{Fields: map[string]string{"status": err.Error()}})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	o, err := h.Orders.Advance(ctx, id, to, req.Note)
	h.record("advance", err)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(ctx, o.ID)
	writeJSON(w, http.StatusOK, o)
}

// invalidate drops the cached status; the projector or the next read
// refills it.
func (h *OrdersHandler) invalidate(ctx context.Context, orderID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, orderID); err != nil {
		log.Printf("invalidate status cache order=%s: %v", orderID, err)
	}
}
