package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&ValidationError{Fields: map[string]string{"name": "is required"}}, KindValidation},
		{ErrInvalidPaymentMethod, KindValidation},
		{cart.ErrInvalidQty, KindValidation},
		{ErrEmptyCart, KindBusiness},
		{&StockError{Details: []StockShortage{{Name: "Shirt"}}}, KindBusiness},
		{fmt.Errorf("%w: card declined", ErrPaymentDeclined), KindBusiness},
		{ErrInsufficientFunds, KindBusiness},
		{catalog.ErrAlreadyReviewed, KindBusiness},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("restock: %w", catalog.ErrProductNotFound), KindNotFound},
		{errors.New("connection reset"), KindInfra},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"phone": "is required", "email": "must be a valid email address"}}
	assert.Equal(t, "invalid input: email must be a valid email address; phone is required", err.Error())
}

func TestStockErrorNamesEveryLine(t *testing.T) {
	err := &StockError{Details: []StockShortage{{Name: "Shirt"}, {Name: "Mug"}}}
	assert.Equal(t, "insufficient stock: Shirt, Mug", err.Error())
	assert.ErrorIs(t, fmt.Errorf("checkout: %w", err), ErrInsufficientStock)
}
