package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/support"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Fields  map[string]string      `json:"fields,omitempty"`
	Details []orders.StockShortage `json:"details,omitempty"`
}

var errorCodes = []struct {
	err  error
	code string
}{
	{orders.ErrEmptyCart, "empty_cart"},
	{orders.ErrInsufficientStock, "insufficient_stock"},
	{orders.ErrInsufficientFunds, "insufficient_funds"},
	{orders.ErrInvalidPaymentMethod, "invalid_payment_method"},
	{orders.ErrPaymentDeclined, "payment_declined"},
	{orders.ErrInvalidTransition, "invalid_transition"},
	{orders.ErrReturnWindowClosed, "return_window_closed"},
	{orders.ErrManualRefund, "manual_refund"},
}

// writeError turns any error into the response the form shows inline.
// Infrastructure failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "invalid_credentials"})
		return
	case errors.Is(err, auth.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "email_taken"})
		return
	case errors.Is(err, support.ErrUnknownOrder):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "not_found"})
		return
	}

	body := errorBody{Error: err.Error(), Code: "business_rule"}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			body.Code = c.code
			break
		}
	}

	switch orders.KindOf(err) {
	case orders.KindValidation:
		body.Code = "validation"
		var ve *orders.ValidationError
		if errors.As(err, &ve) {
			body.Fields = ve.Fields
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case orders.KindBusiness:
		var se *orders.StockError
		if errors.As(err, &se) {
			body.Details = se.Details
		}
		writeJSON(w, http.StatusConflict, body)
	case orders.KindNotFound:
		body.Code = "not_found"
		writeJSON(w, http.StatusNotFound, body)
	default:
		log.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "something went wrong, please try again",
			Code:  "internal",
		})
	}
}

func kindLabel(err error) string {
	if err == nil {
		return "success"
	}
	switch orders.KindOf(err) {
	case orders.KindValidation:
		return "validation"
	case orders.KindBusiness:
		return "business"
	case orders.KindNotFound:
		return "not_found"
	}
	return "infra"
}
