package catalog

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Repo struct{ DB postgres.DBTX }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, description, price, stock, created_at, updated_at
	                              FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct loads one product with its variations.
func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, sku, name, description, price, stock, created_at, updated_at
	                           FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if postgres.IsNoRows(err) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}

	rows, err := r.DB.Query(ctx, `SELECT id, product_id, label, stock FROM product_variations
	                              WHERE product_id=$1 ORDER BY label`, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var v Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Label, &v.Stock); err != nil {
			return Product{}, err
		}
		p.Variations = append(p.Variations, v)
	}
	return p, rows.Err()
}

// Stock reads price and available stock for a product or one of its
// variations, locking the counter row until the surrounding transaction ends.
func (r *Repo) Stock(ctx context.Context, productID, variationID string) (StockInfo, error) {
	s := StockInfo{ProductID: productID, VariationID: variationID}
	if variationID == "" {
		err := r.DB.QueryRow(ctx, `SELECT name, price, stock FROM products WHERE id=$1 FOR UPDATE`, productID).
			Scan(&s.Name, &s.Price, &s.Available)
		if postgres.IsNoRows(err) {
			return StockInfo{}, ErrProductNotFound
		}
		return s, err
	}

	var label string
	err := r.DB.QueryRow(ctx, `
		SELECT p.name, v.label, p.price, v.stock
		FROM product_variations v JOIN products p ON p.id = v.product_id
		WHERE v.id=$1 AND v.product_id=$2
		FOR UPDATE OF v`, variationID, productID).
		Scan(&s.Name, &label, &s.Price, &s.Available)
	if postgres.IsNoRows(err) {
		return StockInfo{}, ErrVariationNotFound
	}
	if err != nil {
		return StockInfo{}, err
	}
	s.Name = fmt.Sprintf("%s (%s)", s.Name, label)
	return s, nil
}

// DecrementStock takes qty off the counter only if enough is left.
// false means the guard failed (somebody else got there first).
func (r *Repo) DecrementStock(ctx context.Context, productID, variationID string, qty int) (bool, error) {
	q := `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1 AND stock >= $2`
	args := []any{productID, qty}
	if variationID != "" {
		q = `UPDATE product_variations SET stock = stock - $2 WHERE id=$1 AND product_id=$3 AND stock >= $2`
		args = []any{variationID, qty, productID}
	}
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) IncrementStock(ctx context.Context, productID, variationID string, qty int) error {
	q := `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`
	args := []any{productID, qty}
	if variationID != "" {
		q = `UPDATE product_variations SET stock = stock + $2 WHERE id=$1 AND product_id=$3`
		args = []any{variationID, qty, productID}
	}
	ct, err := r.DB.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("restock %s/%s: %w", productID, variationID, ErrProductNotFound)
	}
	return nil
}
