package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Details carries the method-specific form fields. Card data is only used
// to authorize; nothing beyond the last four digits leaves this package.
type Details struct {
	WalletPhone string
	CardNumber  string
	CardName    string
	CardExpiry  string
	CardCVV     string
}

func (d Details) CardLast4() string {
	n := strings.ReplaceAll(d.CardNumber, " ", "")
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

type Request struct {
	OrderID string
	UserID  string
	Amount  decimal.Decimal
	Method  Method
	Details Details
}

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomePending  Outcome = "pending"
	OutcomeDeclined Outcome = "declined"
)

type Result struct {
	Outcome       Outcome
	TransactionID string
	Reason        string
}

// Gateway confirms a payment with whatever provider backs the method.
type Gateway interface {
	Authorize(ctx context.Context, req Request) (Result, error)
}
