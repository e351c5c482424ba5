package orders

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/wallet"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
	ErrInvalidPaymentMethod = payment.ErrInvalidMethod
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrNotFound             = errors.New("order not found")
	ErrInvalidTransition    = errors.New("order status does not allow this action")
	ErrReturnWindowClosed   = errors.New("return window has closed")
	ErrManualRefund         = errors.New("refunds for this payment method are handled by support")
)

type StockShortage struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Name        string `json:"name"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
}

// StockError lists every cart line that cannot be filled.
type StockError struct {
	Details []StockShortage
}

func (e *StockError) Error() string {
	names := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		names = append(names, d.Name)
	}
	return fmt.Sprintf("%s: %s", ErrInsufficientStock, strings.Join(names, ", "))
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// ValidationError maps form field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type Kind int

const (
	KindInfra Kind = iota
	KindValidation
	KindBusiness
	KindNotFound
)

// KindOf classifies an error for the request boundary.
func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, cart.ErrInvalidQty),
		errors.Is(err, wallet.ErrInvalidAmount):
		return KindValidation
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrPaymentDeclined),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrReturnWindowClosed),
		errors.Is(err, ErrManualRefund),
		errors.Is(err, cart.ErrOverStock),
		errors.Is(err, catalog.ErrNotPurchased),
		errors.Is(err, catalog.ErrAlreadyReviewed):
		return KindBusiness
	case errors.Is(err, ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariationNotFound):
		return KindNotFound
	}
	return KindInfra
}
