package orders

import (
	"time"

	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/shopspring/decimal"
)

type Shipping struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Shipping    Shipping        `json:"shipping"`
	Status      Status          `json:"status"` // lihat status.go
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []Item          `json:"items,omitempty"`
}

// Item prices are captured at purchase time and never re-read from the catalog.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	VariationID string          `json:"variation_id,omitempty"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty)))
}

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        payment.Method  `json:"method"`
	TransactionID string          `json:"transaction_id"`
	Status        payment.Status  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Delivery struct {
	OrderID        string     `json:"order_id"`
	PreferredDate  *time.Time `json:"preferred_date,omitempty"`
	TimeSlot       string     `json:"time_slot,omitempty"`
	Pickup         bool       `json:"pickup"`
	PickupLocation string     `json:"pickup_location,omitempty"`
}

type HistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail is everything the confirmation / order page shows.
type Detail struct {
	Order
	Payment  *Payment       `json:"payment,omitempty"`
	Delivery *Delivery      `json:"delivery,omitempty"`
	History  []HistoryEntry `json:"history"`
}
