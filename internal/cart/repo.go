package cart

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/google/uuid"
)

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrInvalidQty   = errors.New("quantity must be positive")
	ErrOverStock    = errors.New("requested quantity exceeds stock")
)

// Line is one product (optionally a variation) pending purchase for a user.
type Line struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	VariationID string    `json:"variation_id,omitempty"`
	Qty         int       `json:"qty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repo struct{ DB postgres.DBTX }

const selectLines = `SELECT id, user_id, product_id, COALESCE(variation_id::text, ''), qty, created_at
                     FROM cart_lines WHERE user_id=$1 ORDER BY created_at, id`

func (r *Repo) Lines(ctx context.Context, userID string) ([]Line, error) {
	return r.scan(ctx, selectLines, userID)
}

// LinesForUpdate locks the user's cart rows, so two checkouts of the same
// cart serialize on them.
func (r *Repo) LinesForUpdate(ctx context.Context, userID string) ([]Line, error) {
	return r.scan(ctx, selectLines+` FOR UPDATE`, userID)
}

func (r *Repo) scan(ctx context.Context, q, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.VariationID, &l.Qty, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Add puts qty of a product/variation in the cart, merging with an existing
// line. The merged quantity must fit the current stock.
func (r *Repo) Add(ctx context.Context, userID, productID, variationID string, qty int) (Line, error) {
	if qty <= 0 {
		return Line{}, ErrInvalidQty
	}
	stock, err := (&catalog.Repo{DB: r.DB}).Stock(ctx, productID, variationID)
	if err != nil {
		return Line{}, err
	}

	l := Line{UserID: userID, ProductID: productID, VariationID: variationID}
	err = r.DB.QueryRow(ctx, `
		SELECT id, qty FROM cart_lines
		WHERE user_id=$1 AND product_id=$2 AND variation_id IS NOT DISTINCT FROM $3`,
		userID, productID, postgres.NullString(variationID)).Scan(&l.ID, &l.Qty)
	switch {
	case postgres.IsNoRows(err):
		if qty > stock.Available {
			return Line{}, ErrOverStock
		}
		l.ID = uuid.NewString()
		l.Qty = qty
		err = r.DB.QueryRow(ctx, `
			INSERT INTO cart_lines(id, user_id, product_id, variation_id, qty)
			VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
			l.ID, userID, productID, postgres.NullString(variationID), qty).Scan(&l.CreatedAt)
		return l, err
	case err != nil:
		return Line{}, err
	}

	if l.Qty+qty > stock.Available {
		return Line{}, ErrOverStock
	}
	l.Qty += qty
	err = r.DB.QueryRow(ctx, `UPDATE cart_lines SET qty=$2 WHERE id=$1 RETURNING created_at`, l.ID, l.Qty).
		Scan(&l.CreatedAt)
	return l, err
}

func (r *Repo) SetQty(ctx context.Context, userID, lineID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQty
	}
	ct, err := r.DB.Exec(ctx, `UPDATE cart_lines SET qty=$3 WHERE id=$1 AND user_id=$2`, lineID, userID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, userID, lineID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_lines WHERE id=$1 AND user_id=$2`, lineID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// Clear empties the cart and returns the number of removed lines.
func (r *Repo) Clear(ctx context.Context, userID string) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_lines WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
