package payment

import (
	"context"
	"time"
)

// Simulated stands in for a real provider. Non-wallet methods come back
// pending (settled later by an operator or on delivery); the internal
// wallet is approved because checkout debits it in the same transaction.
type Simulated struct {
	// DeclineCardsEndingIn lists last-four digits that are refused.
	DeclineCardsEndingIn []string
	Now                  func() time.Time
}

func (s *Simulated) Authorize(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	res := Result{TransactionID: NewTransactionID(req.Method, now())}

	switch req.Method {
	case MethodWallet:
		res.Outcome = OutcomeApproved
	case MethodCard:
		last4 := req.Details.CardLast4()
		for _, d := range s.DeclineCardsEndingIn {
			if d == last4 {
				return Result{Outcome: OutcomeDeclined, Reason: "card declined"}, nil
			}
		}
		res.Outcome = OutcomePending
	case MethodCOD, MethodEWallet:
		res.Outcome = OutcomePending
	default:
		return Result{}, ErrInvalidMethod
	}
	return res, nil
}
