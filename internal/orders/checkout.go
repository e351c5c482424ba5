package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRequest is the checkout form. Card and e-wallet fields are
// accepted as given; no payment network checks them.
type CheckoutRequest struct {
	UserID string `form:"-" validate:"required"`

	Method  string `form:"payment_method" json:"payment_method" validate:"required,oneof=cod ewallet card wallet"`
	Name    string `form:"name" json:"name" validate:"required,max=120"`
	Email   string `form:"email" json:"email" validate:"required,email"`
	Phone   string `form:"phone" json:"phone" validate:"required,min=6,max=32"`
	Address string `form:"address" json:"address" validate:"required,max=500"`

	DeliveryDate   string `form:"delivery_date" json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	TimeSlot       string `form:"time_slot" json:"time_slot" validate:"max=40"`
	Pickup         bool   `form:"pickup" json:"pickup"`
	PickupLocation string `form:"pickup_location" json:"pickup_location" validate:"required_if=Pickup true,max=200"`

	WalletPhone string `form:"wallet_phone" json:"wallet_phone" validate:"required_if=Method ewallet,max=32"`
	CardNumber  string `form:"card_number" json:"card_number" validate:"required_if=Method card,max=23"`
	CardName    string `form:"card_name" json:"card_name" validate:"required_if=Method card,max=120"`
	CardExpiry  string `form:"card_expiry" json:"card_expiry" validate:"required_if=Method card,max=7"`
	CardCVV     string `form:"card_cvv" json:"card_cvv" validate:"required_if=Method card,max=4"`

	// CheckoutToken guards against double submits; handled at the HTTP layer.
	CheckoutToken string `form:"checkout_token" json:"checkout_token" validate:"max=64"`
}

func (r *CheckoutRequest) normalize() {
	trim := func(s *string) { *s = strings.TrimSpace(*s) }
	for _, s := range []*string{&r.Method, &r.Name, &r.Email, &r.Phone, &r.Address, &r.DeliveryDate,
		&r.TimeSlot, &r.PickupLocation, &r.WalletPhone, &r.CardNumber, &r.CardName, &r.CardExpiry, &r.CardCVV} {
		trim(s)
	}
	r.Method = strings.ToLower(r.Method)
	r.CardNumber = strings.ReplaceAll(r.CardNumber, " ", "")
}

func (r CheckoutRequest) details() payment.Details {
	return payment.Details{
		WalletPhone: r.WalletPhone,
		CardNumber:  r.CardNumber,
		CardName:    r.CardName,
		CardExpiry:  r.CardExpiry,
		CardCVV:     r.CardCVV,
	}
}

// delivery is nil when the customer gave neither a date nor pickup.
func (r CheckoutRequest) delivery(orderID string) (*Delivery, error) {
	if r.DeliveryDate == "" && !r.Pickup {
		return nil, nil
	}
	d := &Delivery{OrderID: orderID, TimeSlot: r.TimeSlot, Pickup: r.Pickup, PickupLocation: r.PickupLocation}
	if r.DeliveryDate != "" {
		t, err := time.Parse("2006-01-02", r.DeliveryDate)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"delivery_date": "must be a date (YYYY-MM-DD)"}}
		}
		d.PreferredDate = &t
	}
	return d, nil
}

type Service struct {
	Store        Store
	Gateway      payment.Gateway
	Events       EventPublisher // nil disables publishing
	ShippingFee  decimal.Decimal
	ReturnWindow time.Duration
	ServiceName  string
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type pricedLine struct {
	line  cart.Line
	stock catalog.StockInfo
}

// PlaceOrder turns the user's cart into an order in one transaction:
// stock check, order + items, guarded stock decrements, payment, optional
// delivery schedule, wallet debit, cart clear and the first history row.
// On any error nothing is persisted and the cart is untouched.
func (s *Service) PlaceOrder(ctx context.Context, req CheckoutRequest) (*Order, error) {
	req.normalize()
	if err := Validate(req); err != nil {
		return nil, err
	}
	method, err := payment.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var placed *Order
	var pay *Payment
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.Carts().LinesForUpdate(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// 1) stock re-check with current prices. Rows are locked in product
		// order so two carts holding the same products in a different order
		// cannot deadlock.
		stock := make(map[string]catalog.StockInfo, len(lines))
		for _, l := range lockOrder(lines) {
			k := stockKey(l.ProductID, l.VariationID)
			if _, seen := stock[k]; seen {
				continue
			}
			st, err := tx.Stock().Stock(ctx, l.ProductID, l.VariationID)
			if err != nil {
				return fmt.Errorf("stock %s: %w", l.ProductID, err)
			}
			stock[k] = st
		}
		priced := make([]pricedLine, 0, len(lines))
		var short []StockShortage
		subtotal := decimal.Zero
		for _, l := range lines {
			st := stock[stockKey(l.ProductID, l.VariationID)]
			if st.Available < l.Qty {
				short = append(short, StockShortage{
					ProductID: l.ProductID, VariationID: l.VariationID, Name: st.Name,
					Required: l.Qty, Available: st.Available,
				})
				continue
			}
			priced = append(priced, pricedLine{line: l, stock: st})
			subtotal = subtotal.Add(st.Price.Mul(decimal.NewFromInt(int64(l.Qty))))
		}
		if len(short) > 0 {
			return &StockError{Details: short}
		}
		total := subtotal.Add(s.ShippingFee)

		// 2) method preconditions
		if method == payment.MethodWallet {
			bal, err := tx.Wallets().BalanceForUpdate(ctx, req.UserID)
			if err != nil {
				return fmt.Errorf("wallet balance: %w", err)
			}
			if bal.LessThan(total) {
				return ErrInsufficientFunds
			}
		}

		// 3) order
		o := &Order{
			UserID:      req.UserID,
			Total:       total,
			ShippingFee: s.ShippingFee,
			Shipping:    Shipping{Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address},
			Status:      StatusPending,
		}
		if err := tx.Orders().Insert(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		res, err := s.Gateway.Authorize(ctx, payment.Request{
			OrderID: o.ID, UserID: req.UserID, Amount: total, Method: method, Details: req.details(),
		})
		if err != nil {
			return fmt.Errorf("authorize payment: %w", err)
		}
		if res.Outcome == payment.OutcomeDeclined {
			return fmt.Errorf("%w: %s", ErrPaymentDeclined, res.Reason)
		}

		// 4) items + guarded stock decrement
		taken := make(map[string]int, len(priced))
		for _, pl := range priced {
			it := &Item{
				OrderID:     o.ID,
				ProductID:   pl.line.ProductID,
				VariationID: pl.line.VariationID,
				ProductName: pl.stock.Name,
				Qty:         pl.line.Qty,
				UnitPrice:   pl.stock.Price,
			}
			if err := tx.Orders().InsertItem(ctx, it); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			ok, err := tx.Stock().DecrementStock(ctx, it.ProductID, it.VariationID, it.Qty)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			k := stockKey(it.ProductID, it.VariationID)
			if !ok {
				return &StockError{Details: []StockShortage{{
					ProductID: it.ProductID, VariationID: it.VariationID, Name: it.ProductName,
					Required: it.Qty, Available: max(pl.stock.Available-taken[k], 0),
				}}}
			}
			taken[k] += it.Qty
			o.Items = append(o.Items, *it)
		}

		// 5) payment
		p := &Payment{
			OrderID:       o.ID,
			Amount:        total,
			Method:        method,
			TransactionID: res.TransactionID,
			Status:        payment.StatusPending,
		}
		if p.TransactionID == "" {
			p.TransactionID = payment.NewTransactionID(method, s.now())
		}
		if method == payment.MethodWallet || res.Outcome == payment.OutcomeApproved {
			p.Status = payment.StatusCompleted
		}
		if err := tx.Orders().InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		// 6) delivery schedule
		d, err := req.delivery(o.ID)
		if err != nil {
			return err
		}
		if d != nil {
			if err := tx.Orders().InsertDelivery(ctx, d); err != nil {
				return fmt.Errorf("insert delivery: %w", err)
			}
		}

		// 7) wallet debit, guarded against a concurrent spend
		if method == payment.MethodWallet {
			ok, err := tx.Wallets().Debit(ctx, req.UserID, total)
			if err != nil {
				return fmt.Errorf("wallet debit: %w", err)
			}
			if !ok {
				return ErrInsufficientFunds
			}
		}

		// 8) cart
		if _, err := tx.Carts().Clear(ctx, req.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		// 9) history + confirmation mail
		if err := tx.Orders().AppendHistory(ctx, o.ID, StatusPending, "Order created"); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if err := tx.Emails().Enqueue(ctx, confirmationEmail(o, p)); err != nil {
			return fmt.Errorf("queue email: %w", err)
		}

		placed, pay = o, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishPlaced(ctx, placed, pay)
	return placed, nil
}

func stockKey(productID, variationID string) string {
	if variationID == "" {
		return productID
	}
	return productID + "/" + variationID
}

// lockOrder returns the lines sorted by product then variation.
func lockOrder(lines []cart.Line) []cart.Line {
	out := slices.Clone(lines)
	slices.SortFunc(out, func(a, b cart.Line) int {
		if c := strings.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return strings.Compare(a.VariationID, b.VariationID)
	})
	return out
}

func confirmationEmail(o *Order, p *Payment) notify.Email {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order %s.\n\n", o.Shipping.Name, o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n", it.Qty, it.ProductName, it.UnitPrice.StringFixed(2), it.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "Shipping: %s\nTotal: %s\nPayment: %s (%s)\n",
		o.ShippingFee.StringFixed(2), o.Total.StringFixed(2), p.Method, p.Status)
	return notify.Email{Recipient: o.Shipping.Email, Subject: "Order " + o.ID + " received", Body: b.String()}
}

func (s *Service) envelope(ctx context.Context, eventType, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       TraceID(ctx),
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

func (s *Service) publishPlaced(ctx context.Context, o *Order, p *Payment) {
	if s.Events == nil {
		return
	}
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, VariationID: it.VariationID, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	s.emit(ctx, EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID: o.ID, UserID: o.UserID, Items: items, Total: o.Total,
		PaymentMethod: p.Method, PaymentStatus: p.Status, PlacedAt: o.CreatedAt,
	})
}

func (s *Service) emit(ctx context.Context, eventType, orderID string, payload any) {
	env, err := s.envelope(ctx, eventType, orderID, payload)
	if err == nil {
		err = s.Events.PublishEvent(ctx, env)
	}
	if err != nil {
		log.Printf("publish %s for order %s: %v", eventType, orderID, err)
	}
}
