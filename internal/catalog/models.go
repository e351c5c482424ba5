package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVariationNotFound = errors.New("variation not found")
	ErrNotPurchased      = errors.New("only purchased products can be reviewed")
	ErrAlreadyReviewed   = errors.New("product already reviewed")
)

type Product struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Variations  []Variation     `json:"variations,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variation is a sized/styled SKU of a product with its own stock counter.
type Variation struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Label     string `json:"label"`
	Stock     int    `json:"stock"`
}

// StockInfo is what checkout needs about one cart line: the current price
// and the stock of the counter that line draws from.
type StockInfo struct {
	ProductID   string
	VariationID string
	Name        string
	Price       decimal.Decimal
	Available   int
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
