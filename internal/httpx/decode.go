package httpx

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBody = 1 << 20

var errBadBody = errors.New("invalid request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

// pathID reads a UUID route parameter. Anything else cannot name a row,
// so it is answered with notFound before reaching the database.
func pathID(w http.ResponseWriter, r *http.Request, param string, notFound error) (string, bool) {
	id := chi.URLParam(r, param)
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, notFound)
		return "", false
	}
	return id, true
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// decodeCheckout accepts the checkout form (urlencoded or multipart) or the
// same fields as JSON. fromForm tells the caller how to answer.
func decodeCheckout(w http.ResponseWriter, r *http.Request) (req orders.CheckoutRequest, fromForm bool, err error) {
	if isJSON(r) {
		return req, false, decodeJSON(w, r, &req)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	parse := r.ParseForm
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		parse = func() error { return r.ParseMultipartForm(maxBody) }
	}
	if err := parse(); err != nil {
		return req, true, errBadBody
	}
	f := r.PostForm
	req = orders.CheckoutRequest{
		Method:         f.Get("payment_method"),
		Name:           f.Get("name"),
		Email:          f.Get("email"),
		Phone:          f.Get("phone"),
		Address:        f.Get("address"),
		DeliveryDate:   f.Get("delivery_date"),
		TimeSlot:       f.Get("time_slot"),
		Pickup:         truthy(f.Get("pickup")),
		PickupLocation: f.Get("pickup_location"),
		WalletPhone:    f.Get("wallet_phone"),
		CardNumber:     f.Get("card_number"),
		CardName:       f.Get("card_name"),
		CardExpiry:     f.Get("card_expiry"),
		CardCVV:        f.Get("card_cvv"),
		CheckoutToken:  f.Get("checkout_token"),
	}
	return req, true, nil
}
