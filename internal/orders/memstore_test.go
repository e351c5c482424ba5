package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

type memProduct struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

// memState is the whole database. Transactions work on a copy and swap it
// in on success, which gives the same all-or-nothing outcome as Postgres.
type memState struct {
	products map[string]memProduct // key: productID or productID/variationID
	carts    map[string][]cart.Line
	wallets  map[string]decimal.Decimal
	orders   map[string]Order
	items    map[string][]Item
	payments map[string]Payment
	delivery map[string]Delivery
	history  map[string][]HistoryEntry
	emails   []notify.Email
}

func newMemState() memState {
	return memState{
		products: map[string]memProduct{},
		carts:    map[string][]cart.Line{},
		wallets:  map[string]decimal.Decimal{},
		orders:   map[string]Order{},
		items:    map[string][]Item{},
		payments: map[string]Payment{},
		delivery: map[string]Delivery{},
		history:  map[string][]HistoryEntry{},
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = append([]cart.Line(nil), v...)
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]Item(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.delivery {
		c.delivery[k] = v
	}
	for k, v := range s.history {
		c.history[k] = append([]HistoryEntry(nil), v...)
	}
	c.emails = append([]notify.Email(nil), s.emails...)
	return c
}

// memStore serializes transactions on one mutex, the strongest isolation
// there is. Concurrency tests still prove the guards, because each
// checkout re-reads stock under the lock.
type memStore struct {
	mu         sync.Mutex
	st         memState
	now        func() time.Time
	failOn     map[string]error
	missOn     map[string]bool // guarded update reports no row changed
	stockReads []string        // stock keys in lock order
	seq        int64
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{st: newMemState(), now: now, failOn: map[string]error{}, missOn: map[string]bool{}}
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, st: m.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.st = tx.st
	return nil
}

// snapshot returns a copy safe to inspect from tests.
func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.clone()
}

func (m *memStore) addProduct(id string, name string, price int64, stock int) {
	m.st.products[id] = memProduct{Name: name, Price: decimal.NewFromInt(price), Stock: stock}
}

func (m *memStore) addVariation(productID, variationID, label string, stock int) {
	p := m.st.products[productID]
	m.st.products[productID+"/"+variationID] = memProduct{Name: p.Name + " (" + label + ")", Price: p.Price, Stock: stock}
}

func (m *memStore) addToCart(userID, productID, variationID string, qty int) {
	m.st.carts[userID] = append(m.st.carts[userID], cart.Line{
		ID: uuid.NewString(), UserID: userID, ProductID: productID, VariationID: variationID, Qty: qty,
	})
}

// seedOrder puts an order directly into the given status with a history
// row dated at.
func (m *memStore) seedOrder(userID string, st Status, method payment.Method, ps payment.Status, amount int64, at time.Time, items ...Item) Order {
	o := Order{
		ID: uuid.NewString(), UserID: userID, Total: decimal.NewFromInt(amount), Status: st,
		Shipping:  Shipping{Name: "Ana", Email: "ana@example.com"},
		CreatedAt: at, UpdatedAt: at,
	}
	m.st.orders[o.ID] = o
	for i := range items {
		items[i].OrderID = o.ID
	}
	m.st.items[o.ID] = items
	m.st.payments[o.ID] = Payment{
		ID: uuid.NewString(), OrderID: o.ID, Amount: o.Total, Method: method, Status: ps,
		TransactionID: payment.NewTransactionID(method, at),
	}
	m.st.history[o.ID] = []HistoryEntry{{OrderID: o.ID, Status: st, CreatedAt: at}}
	return o
}

type memTx struct {
	m  *memStore
	st memState
}

func (t *memTx) fail(op string) error { return t.m.failOn[op] }

func (t *memTx) Carts() CartStore     { return t }
func (t *memTx) Stock() StockStore    { return memStock{t} }
func (t *memTx) Wallets() WalletStore { return t }
func (t *memTx) Orders() OrderStore   { return t }
func (t *memTx) Emails() EmailQueue   { return t }

func (t *memTx) LinesForUpdate(_ context.Context, userID string) ([]cart.Line, error) {
	if err := t.fail("LinesForUpdate"); err != nil {
		return nil, err
	}
	return append([]cart.Line(nil), t.st.carts[userID]...), nil
}

func (t *memTx) Clear(_ context.Context, userID string) (int64, error) {
	if err := t.fail("Clear"); err != nil {
		return 0, err
	}
	n := int64(len(t.st.carts[userID]))
	delete(t.st.carts, userID)
	return n, nil
}

// memStock exists because Tx.Stock() and StockStore.Stock(...) share a name.
type memStock struct{ *memTx }

func (s memStock) Stock(_ context.Context, productID, variationID string) (catalog.StockInfo, error) {
	s.m.stockReads = append(s.m.stockReads, stockKey(productID, variationID))
	p, ok := s.st.products[stockKey(productID, variationID)]
	if !ok {
		return catalog.StockInfo{}, catalog.ErrProductNotFound
	}
	return catalog.StockInfo{
		ProductID: productID, VariationID: variationID, Name: p.Name, Price: p.Price, Available: p.Stock,
	}, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID, variationID string, qty int) (bool, error) {
	if err := t.fail("DecrementStock"); err != nil {
		return false, err
	}
	k := stockKey(productID, variationID)
	p, ok := t.st.products[k]
	if !ok || p.Stock < qty || t.m.missOn["DecrementStock"] {
		return false, nil
	}
	p.Stock -= qty
	t.st.products[k] = p
	return true, nil
}

func (t *memTx) IncrementStock(_ context.Context, productID, variationID string, qty int) error {
	k := stockKey(productID, variationID)
	p, ok := t.st.products[k]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Stock += qty
	t.st.products[k] = p
	return nil
}

func (t *memTx) BalanceForUpdate(_ context.Context, userID string) (decimal.Decimal, error) {
	return t.st.wallets[userID], nil
}

func (t *memTx) Debit(_ context.Context, userID string, amount decimal.Decimal) (bool, error) {
	if err := t.fail("Debit"); err != nil {
		return false, err
	}
	bal := t.st.wallets[userID]
	if bal.LessThan(amount) || t.m.missOn["Debit"] {
		return false, nil
	}
	t.st.wallets[userID] = bal.Sub(amount)
	return true, nil
}

func (t *memTx) Credit(_ context.Context, userID string, amount decimal.Decimal) error {
	t.st.wallets[userID] = t.st.wallets[userID].Add(amount)
	return nil
}

func (t *memTx) Enqueue(_ context.Context, e notify.Email) error {
	if err := t.fail("Enqueue"); err != nil {
		return err
	}
	t.st.emails = append(t.st.emails, e)
	return nil
}

func (t *memTx) Insert(_ context.Context, o *Order) error {
	if err := t.fail("Insert"); err != nil {
		return err
	}
	o.ID = uuid.NewString()
	o.CreatedAt = t.m.now()
	o.UpdatedAt = o.CreatedAt
	t.st.orders[o.ID] = *o
	return nil
}

func (t *memTx) InsertItem(_ context.Context, it *Item) error {
	if err := t.fail("InsertItem"); err != nil {
		return err
	}
	t.m.seq++
	it.ID = t.m.seq
	t.st.items[it.OrderID] = append(t.st.items[it.OrderID], *it)
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *Payment) error {
	if err := t.fail("InsertPayment"); err != nil {
		return err
	}
	if _, dup := t.st.payments[p.OrderID]; dup {
		return errors.New("duplicate payment")
	}
	p.ID = uuid.NewString()
	t.st.payments[p.OrderID] = *p
	return nil
}

func (t *memTx) InsertDelivery(_ context.Context, d *Delivery) error {
	if err := t.fail("InsertDelivery"); err != nil {
		return err
	}
	t.st.delivery[d.OrderID] = *d
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, orderID string, s Status, note string) error {
	if err := t.fail("AppendHistory"); err != nil {
		return err
	}
	t.st.history[orderID] = append(t.st.history[orderID], HistoryEntry{
		OrderID: orderID, Status: s, Note: note, CreatedAt: t.m.now(),
	})
	return nil
}

func (t *memTx) GetForUpdate(_ context.Context, orderID string) (Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (t *memTx) Items(_ context.Context, orderID string) ([]Item, error) {
	return append([]Item(nil), t.st.items[orderID]...), nil
}

func (t *memTx) Payment(_ context.Context, orderID string) (Payment, error) {
	p, ok := t.st.payments[orderID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) SetStatus(_ context.Context, orderID string, from, to Status) (bool, error) {
	if err := t.fail("SetStatus"); err != nil {
		return false, err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = t.m.now()
	t.st.orders[orderID] = o
	return true, nil
}

func (t *memTx) SetPaymentStatus(_ context.Context, orderID string, s payment.Status) error {
	p, ok := t.st.payments[orderID]
	if !ok {
		return ErrNotFound
	}
	p.Status = s
	t.st.payments[orderID] = p
	return nil
}

func (t *memTx) StatusReachedAt(_ context.Context, orderID string, s Status) (time.Time, error) {
	h := t.st.history[orderID]
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Status == s {
			return h[i].CreatedAt, nil
		}
	}
	return time.Time{}, ErrNotFound
}

type recPublisher struct {
	mu   sync.Mutex
	envs []Envelope
	err  error
}

func (p *recPublisher) PublishEvent(_ context.Context, env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return p.err
}

func (p *recPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.envs))
	for _, e := range p.envs {
		out = append(out, e.EventType)
	}
	return out
}
