package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/wallet"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CartStore interface {
	LinesForUpdate(ctx context.Context, userID string) ([]cart.Line, error)
	Clear(ctx context.Context, userID string) (int64, error)
}

type StockStore interface {
	Stock(ctx context.Context, productID, variationID string) (catalog.StockInfo, error)
	DecrementStock(ctx context.Context, productID, variationID string, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID, variationID string, qty int) error
}

type WalletStore interface {
	BalanceForUpdate(ctx context.Context, userID string) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
}

type EmailQueue interface {
	Enqueue(ctx context.Context, e notify.Email) error
}

type OrderStore interface {
	Insert(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, it *Item) error
	InsertPayment(ctx context.Context, p *Payment) error
	InsertDelivery(ctx context.Context, d *Delivery) error
	AppendHistory(ctx context.Context, orderID string, s Status, note string) error
	GetForUpdate(ctx context.Context, orderID string) (Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	Payment(ctx context.Context, orderID string) (Payment, error)
	SetStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
	SetPaymentStatus(ctx context.Context, orderID string, s payment.Status) error
	StatusReachedAt(ctx context.Context, orderID string, s Status) (time.Time, error)
}

// Tx hands out repositories bound to one open transaction.
type Tx interface {
	Carts() CartStore
	Stock() StockStore
	Wallets() WalletStore
	Orders() OrderStore
	Emails() EmailQueue
}

// Store runs fn atomically: either everything fn wrote is committed or
// nothing is.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type PgStore struct{ DB postgres.TxBeginner }

func (s *PgStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

type pgTx struct{ tx pgx.Tx }

func (t pgTx) Carts() CartStore     { return &cart.Repo{DB: t.tx} }
func (t pgTx) Stock() StockStore    { return &catalog.Repo{DB: t.tx} }
func (t pgTx) Wallets() WalletStore { return &wallet.Repo{DB: t.tx} }
func (t pgTx) Orders() OrderStore   { return &Repo{DB: t.tx} }
func (t pgTx) Emails() EmailQueue   { return &notify.Repo{DB: t.tx} }
