package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/support"
	"github.com/go-chi/chi/v5"
)

type Tickets interface {
	Create(ctx context.Context, t support.Ticket) (support.Ticket, error)
	ListByUser(ctx context.Context, userID string) ([]support.Ticket, error)
}

type SupportHandler struct {
	Tickets Tickets
}

type ticketReq struct {
	OrderID string `form:"order_id" json:"order_id" validate:"omitempty,uuid"`
	Subject string `form:"subject" json:"subject" validate:"required,max=200"`
	Message string `form:"message" json:"message" validate:"required,max=5000"`
}

func (h *SupportHandler) Register(r chi.Router) {
	r.With(auth.RequireUser).Post("/support/tickets", h.create)
	r.With(auth.RequireUser).Get("/support/tickets", h.list)
}

func (h *SupportHandler) create(w http.ResponseWriter, r *http.Request) {
	var req ticketReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	req.Subject, req.Message = strings.TrimSpace(req.Subject), strings.TrimSpace(req.Message)
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	t, err := h.Tickets.Create(r.Context(), support.Ticket{
		UserID: userID(r), OrderID: req.OrderID, Subject: req.Subject, Message: req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *SupportHandler) list(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Tickets.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if ts == nil {
		ts = []support.Ticket{}
	}
	writeJSON(w, http.StatusOK, ts)
}
