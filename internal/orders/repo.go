package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DBTX }

const orderColumns = `id, user_id, total, shipping_fee, shipping_name, shipping_email, shipping_phone,
	shipping_address, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.ShippingFee, &o.Shipping.Name, &o.Shipping.Email,
		&o.Shipping.Phone, &o.Shipping.Address, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	o.ID = uuid.NewString()
	return r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, total, shipping_fee, shipping_name, shipping_email,
		                   shipping_phone, shipping_address, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.Total, o.ShippingFee, o.Shipping.Name, o.Shipping.Email,
		o.Shipping.Phone, o.Shipping.Address, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) InsertItem(ctx context.Context, it *Item) error {
	return r.DB.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, variation_id, product_name, qty, unit_price)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		it.OrderID, it.ProductID, postgres.NullString(it.VariationID), it.ProductName, it.Qty, it.UnitPrice,
	).Scan(&it.ID)
}

func (r *Repo) InsertPayment(ctx context.Context, p *Payment) error {
	p.ID = uuid.NewString()
	return r.DB.QueryRow(ctx, `
		INSERT INTO payments(id, order_id, amount, method, transaction_id, status)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at, updated_at`,
		p.ID, p.OrderID, p.Amount, p.Method, p.TransactionID, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *Repo) InsertDelivery(ctx context.Context, d *Delivery) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO delivery_schedules(order_id, preferred_date, time_slot, pickup, pickup_location)
		VALUES ($1,$2,$3,$4,$5)`,
		d.OrderID, d.PreferredDate, d.TimeSlot, d.Pickup, d.PickupLocation)
	return err
}

func (r *Repo) AppendHistory(ctx context.Context, orderID string, s Status, note string) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO order_status_history(order_id, status, note) VALUES ($1,$2,$3)`,
		orderID, s, note)
	return err
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
}

// GetForUpdate locks the order row until the transaction ends.
func (r *Repo) GetForUpdate(ctx context.Context, orderID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) Items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, COALESCE(variation_id::text, ''), product_name, qty, unit_price
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariationID, &it.ProductName, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Payment(ctx context.Context, orderID string) (Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, amount, method, transaction_id, status, created_at, updated_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.TransactionID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("payment for %s: %w", orderID, ErrNotFound)
	}
	return p, err
}

// Delivery returns nil when the customer gave no delivery preference.
func (r *Repo) Delivery(ctx context.Context, orderID string) (*Delivery, error) {
	var d Delivery
	err := r.DB.QueryRow(ctx, `
		SELECT order_id, preferred_date, time_slot, pickup, pickup_location
		FROM delivery_schedules WHERE order_id=$1`, orderID).
		Scan(&d.OrderID, &d.PreferredDate, &d.TimeSlot, &d.Pickup, &d.PickupLocation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) History(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, status, note, created_at
		FROM order_status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Detail loads an order owned by userID together with its items, payment,
// delivery schedule and history.
func (r *Repo) Detail(ctx context.Context, userID, orderID string) (Detail, error) {
	o, err := r.Get(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	if o.UserID != userID {
		return Detail{}, ErrNotFound
	}
	d := Detail{Order: o}
	if d.Items, err = r.Items(ctx, orderID); err != nil {
		return Detail{}, err
	}
	p, err := r.Payment(ctx, orderID)
	switch {
	case err == nil:
		d.Payment = &p
	case !errors.Is(err, ErrNotFound):
		return Detail{}, err
	}
	if d.Delivery, err = r.Delivery(ctx, orderID); err != nil {
		return Detail{}, err
	}
	if d.History, err = r.History(ctx, orderID); err != nil {
		return Detail{}, err
	}
	return d, nil
}

// SetStatus moves the order only if it is still in from; false means
// another request changed it first.
func (r *Repo) SetStatus(ctx context.Context, orderID string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) SetPaymentStatus(ctx context.Context, orderID string, s payment.Status) error {
	_, err := r.DB.Exec(ctx, `UPDATE payments SET status=$2, updated_at=now() WHERE order_id=$1`, orderID, s)
	return err
}

// StatusReachedAt is when the order last entered s, per its history.
func (r *Repo) StatusReachedAt(ctx context.Context, orderID string, s Status) (time.Time, error) {
	var at time.Time
	err := r.DB.QueryRow(ctx, `
		SELECT created_at FROM order_status_history
		WHERE order_id=$1 AND status=$2 ORDER BY id DESC LIMIT 1`, orderID, s).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%s never reached %s: %w", orderID, s, ErrNotFound)
	}
	return at, err
}
