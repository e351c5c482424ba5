package catalog

import (
	"context"

	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/google/uuid"
)

// CreateReview stores a rating for a product the user actually received.
func (r *Repo) CreateReview(ctx context.Context, rv Review) (Review, error) {
	var bought bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items i JOIN orders o ON o.id = i.order_id
			WHERE o.user_id=$1 AND i.product_id=$2
			  AND o.status IN ('delivered','return_requested','returned','refunded')
		)`, rv.UserID, rv.ProductID).Scan(&bought)
	if err != nil {
		return Review{}, err
	}
	if !bought {
		return Review{}, ErrNotPurchased
	}

	rv.ID = uuid.NewString()
	err = r.DB.QueryRow(ctx, `
		INSERT INTO reviews(id, product_id, user_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Comment).Scan(&rv.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return Review{}, ErrAlreadyReviewed
	}
	if err != nil {
		return Review{}, err
	}
	return rv, nil
}

func (r *Repo) ListReviews(ctx context.Context, productID string) ([]Review, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, product_id, user_id, rating, comment, created_at
	                              FROM reviews WHERE product_id=$1 ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
