package support

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/google/uuid"
)

var ErrUnknownOrder = errors.New("order not found for this account")

type Ticket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo struct{ DB postgres.DBTX }

// Create opens a ticket. A referenced order must belong to the user.
func (r *Repo) Create(ctx context.Context, t Ticket) (Ticket, error) {
	if t.OrderID != "" {
		var owned bool
		err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1 AND user_id=$2)`,
			t.OrderID, t.UserID).Scan(&owned)
		if err != nil {
			return Ticket{}, err
		}
		if !owned {
			return Ticket{}, ErrUnknownOrder
		}
	}
	t.ID = uuid.NewString()
	t.Status = "open"
	err := r.DB.QueryRow(ctx, `
		INSERT INTO support_tickets(id, user_id, order_id, subject, message, status)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		t.ID, t.UserID, postgres.NullString(t.OrderID), t.Subject, t.Message, t.Status).Scan(&t.CreatedAt)
	return t, err
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Ticket, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, COALESCE(order_id::text, ''), subject, message, status, created_at
		FROM support_tickets WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Subject, &t.Message, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
