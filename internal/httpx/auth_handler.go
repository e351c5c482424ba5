package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
)

type UserStore interface {
	Register(ctx context.Context, email, name, password string) (auth.User, error)
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
}

type SessionStore interface {
	Issue(ctx context.Context, u auth.User) (string, error)
	Revoke(ctx context.Context, sid string) error
}

type AuthHandler struct {
	Users        UserStore
	Sessions     SessionStore
	TTL          time.Duration
	SecureCookie bool
}

type registerReq struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Name     string `form:"name" json:"name" validate:"required,max=120"`
	Password string `form:"password" json:"password" validate:"required,min=8,max=72"`
}

type loginReq struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

type sessionResp struct {
	User  auth.User `json:"user"`
	Token string    `json:"token"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.With(auth.RequireUser).Post("/auth/logout", h.logout)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.Users.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, r, u, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "bad_request"})
		return
	}
	if err := orders.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, r, u, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, u auth.User, code int) {
	tok, err := h.Sessions.Issue(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, code, sessionResp{User: u, Token: tok})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if err := h.Sessions.Revoke(r.Context(), id.SessionID); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}
