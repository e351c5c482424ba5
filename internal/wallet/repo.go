package wallet

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// MaxTopUp caps a single fund addition.
var MaxTopUp = decimal.NewFromInt(100000)

type Repo struct{ DB postgres.DBTX }

// Balance returns 0 for users who never funded a wallet.
func (r *Repo) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := r.DB.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id=$1`, userID).Scan(&b)
	if postgres.IsNoRows(err) {
		return decimal.Zero, nil
	}
	return b, err
}

// BalanceForUpdate is Balance with the wallet row locked.
func (r *Repo) BalanceForUpdate(ctx context.Context, userID string) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := r.DB.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&b)
	if postgres.IsNoRows(err) {
		return decimal.Zero, nil
	}
	return b, err
}

func (r *Repo) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO wallets(user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()`,
		userID, amount)
	return err
}

// Debit takes amount off the balance only if it stays non-negative.
// false means the balance was short, possibly because of a concurrent spend.
func (r *Repo) Debit(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE wallets SET balance = balance - $2, updated_at = now()
		WHERE user_id=$1 AND balance >= $2`, userID, amount)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
