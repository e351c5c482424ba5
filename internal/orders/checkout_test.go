package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memStore, *recPublisher) {
	t.Helper()
	store := newMemStore(func() time.Time { return fixedNow })
	store.addProduct("p-shirt", "Shirt", 500, 10)
	store.addProduct("p-mug", "Mug", 300, 5)
	pub := &recPublisher{}
	svc := &Service{
		Store:        store,
		Gateway:      &payment.Simulated{DeclineCardsEndingIn: []string{"0002"}, Now: func() time.Time { return fixedNow }},
		Events:       pub,
		ShippingFee:  decimal.NewFromInt(50),
		ReturnWindow: 30 * 24 * time.Hour,
		ServiceName:  "storefront-api",
		Now:          func() time.Time { return fixedNow },
	}
	return svc, store, pub
}

func validRequest(userID string, method payment.Method) CheckoutRequest {
	return CheckoutRequest{
		UserID:  userID,
		Method:  string(method),
		Name:    "Ana Putri",
		Email:   "ana@example.com",
		Phone:   "08123456789",
		Address: "Jl. Merdeka 1, Bandung",
	}
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)

	assert.True(t, o.Total.Equal(decimal.NewFromInt(1350)), "total = %s", o.Total)
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Shirt", o.Items[0].ProductName)

	st := store.snapshot()
	assert.Empty(t, st.carts["u1"])
	assert.Equal(t, 8, st.products["p-shirt"].Stock)
	assert.Equal(t, 4, st.products["p-mug"].Stock)

	p := st.payments[o.ID]
	assert.Equal(t, payment.MethodCOD, p.Method)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.True(t, p.Amount.Equal(o.Total))
	assert.Regexp(t, `^COD-20260302100000-[0-9a-f]{8}$`, p.TransactionID)

	require.Len(t, st.history[o.ID], 1)
	assert.Equal(t, StatusPending, st.history[o.ID][0].Status)
	assert.Equal(t, "Order created", st.history[o.ID][0].Note)

	require.Len(t, st.emails, 1)
	assert.Equal(t, "ana@example.com", st.emails[0].Recipient)
	assert.Contains(t, st.emails[0].Body, "Total: 1350.00")

	assert.Equal(t, []string{EventOrderPlaced}, pub.types())
	assert.Empty(t, st.delivery)
}

func TestPlaceOrder_VariationStock(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addVariation("p-shirt", "v-xl", "XL", 1)
	store.addToCart("u1", "p-shirt", "v-xl", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)

	st := store.snapshot()
	assert.Equal(t, 0, st.products["p-shirt/v-xl"].Stock)
	assert.Equal(t, 10, st.products["p-shirt"].Stock, "base product stock untouched")
	assert.Equal(t, "Shirt (XL)", o.Items[0].ProductName)
}

// assertUntouched checks that a failed checkout left no trace.
func assertUntouched(t *testing.T, store *memStore, pub *recPublisher, userID string, cartLines int) {
	t.Helper()
	st := store.snapshot()
	assert.Empty(t, st.orders)
	assert.Empty(t, st.payments)
	assert.Empty(t, st.items)
	assert.Empty(t, st.history)
	assert.Empty(t, st.emails)
	assert.Len(t, st.carts[userID], cartLines)
	assert.Equal(t, 10, st.products["p-shirt"].Stock)
	assert.Equal(t, 5, st.products["p-mug"].Stock)
	assert.Empty(t, pub.types())
}

func TestPlaceOrder_InsufficientStockListsEveryLine(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 11)
	store.addToCart("u1", "p-mug", "", 6)

	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, KindBusiness, KindOf(err))

	var se *StockError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Details, 2)
	assert.Equal(t, StockShortage{ProductID: "p-shirt", Name: "Shirt", Required: 11, Available: 10}, se.Details[0])
	assert.Equal(t, "Mug", se.Details[1].Name)

	assertUntouched(t, store, pub, "u1", 2)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_Validation(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 1)

	cases := []struct {
		name   string
		mutate func(r *CheckoutRequest)
		fields []string
	}{
		{"missing contact", func(r *CheckoutRequest) { r.Name = "  "; r.Email = "" }, []string{"name", "email"}},
		{"bad email", func(r *CheckoutRequest) { r.Email = "nope" }, []string{"email"}},
		{"card without details", func(r *CheckoutRequest) { r.Method = "card" }, []string{"card_number", "card_name", "card_expiry", "card_cvv"}},
		{"ewallet without phone", func(r *CheckoutRequest) { r.Method = "ewallet" }, []string{"wallet_phone"}},
		{"pickup without location", func(r *CheckoutRequest) { r.Pickup = true }, []string{"pickup_location"}},
		{"bad delivery date", func(r *CheckoutRequest) { r.DeliveryDate = "next week" }, []string{"delivery_date"}},
		{"unknown method", func(r *CheckoutRequest) { r.Method = "barter" }, []string{"payment_method"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest("u1", payment.MethodCOD)
			tc.mutate(&req)
			_, err := svc.PlaceOrder(context.Background(), req)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, KindValidation, KindOf(err))
			for _, f := range tc.fields {
				assert.Contains(t, ve.Fields, f)
			}
		})
	}
	assertUntouched(t, store, pub, "u1", 1)
}

func TestPlaceOrder_WalletDebitsBalance(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.st.wallets["u1"] = decimal.NewFromInt(2000)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodWallet))
	require.NoError(t, err)

	st := store.snapshot()
	assert.True(t, st.wallets["u1"].Equal(decimal.NewFromInt(650)), "balance = %s", st.wallets["u1"])
	assert.Equal(t, payment.StatusCompleted, st.payments[o.ID].Status)
	assert.Regexp(t, `^WLT-`, st.payments[o.ID].TransactionID)
}

func TestPlaceOrder_WalletInsufficientFunds(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.st.wallets["u1"] = decimal.NewFromInt(1349)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)

	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodWallet))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assertUntouched(t, store, pub, "u1", 2)
	assert.True(t, store.snapshot().wallets["u1"].Equal(decimal.NewFromInt(1349)))
}

func TestPlaceOrder_DeclinedCard(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 1)

	req := validRequest("u1", payment.MethodCard)
	req.CardNumber = "4000 0000 0000 0002"
	req.CardName = "ANA PUTRI"
	req.CardExpiry = "12/28"
	req.CardCVV = "123"

	_, err := svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, KindBusiness, KindOf(err))
	assertUntouched(t, store, pub, "u1", 1)
}

func TestPlaceOrder_FailureAtAnyStepRollsBack(t *testing.T) {
	for _, op := range []string{"Insert", "InsertItem", "DecrementStock", "InsertPayment", "InsertDelivery", "Clear", "AppendHistory", "Enqueue"} {
		t.Run(op, func(t *testing.T) {
			svc, store, pub := newTestService(t)
			store.addToCart("u1", "p-shirt", "", 2)
			store.addToCart("u1", "p-mug", "", 1)
			store.failOn[op] = errInjected

			req := validRequest("u1", payment.MethodCOD)
			req.DeliveryDate = "2026-03-05"

			_, err := svc.PlaceOrder(context.Background(), req)
			require.ErrorIs(t, err, errInjected)
			assert.Equal(t, KindInfra, KindOf(err))
			assertUntouched(t, store, pub, "u1", 2)
		})
	}
}

func TestPlaceOrder_DeliverySchedule(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addToCart("u1", "p-mug", "", 1)

	req := validRequest("u1", payment.MethodEWallet)
	req.WalletPhone = "08123456789"
	req.DeliveryDate = "2026-03-05"
	req.TimeSlot = "09:00-12:00"

	o, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	d, ok := store.snapshot().delivery[o.ID]
	require.True(t, ok)
	require.NotNil(t, d.PreferredDate)
	assert.Equal(t, "2026-03-05", d.PreferredDate.Format("2006-01-02"))
	assert.Equal(t, "09:00-12:00", d.TimeSlot)
	assert.False(t, d.Pickup)
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	svc, store, pub := newTestService(t)
	pub.err = errors.New("broker down")
	store.addToCart("u1", "p-mug", "", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)
	assert.Contains(t, store.snapshot().orders, o.ID)
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addProduct("p-last", "Last One", 100, 1)
	const buyers = 8
	for i := 0; i < buyers; i++ {
		store.addToCart(userN(i), "p-last", "", 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), validRequest(userN(i), payment.MethodCOD))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 1, ok)

	st := store.snapshot()
	assert.Equal(t, 0, st.products["p-last"].Stock)
	assert.Len(t, st.orders, 1)
}

func TestPlaceOrder_CancelledContext(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-mug", "", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.PlaceOrder(ctx, validRequest("u1", payment.MethodCOD))
	require.ErrorIs(t, err, context.Canceled)
	assertUntouched(t, store, pub, "u1", 1)
}

func TestPlaceOrder_EventCarriesTraceID(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-mug", "", 1)

	ctx := WithTraceID(context.Background(), "req-42")
	o, err := svc.PlaceOrder(ctx, validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)

	require.Len(t, pub.envs, 1)
	env := pub.envs[0]
	assert.Equal(t, "req-42", env.TraceID)
	assert.Equal(t, o.ID, env.CorrelationID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "storefront-api", env.Producer)
}

func userN(i int) string { return string(rune('a'+i)) + "-user" }

func TestPlaceOrder_LocksStockInProductOrder(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addVariation("p-shirt", "v-xl", "XL", 3)
	store.addToCart("u1", "p-shirt", "v-xl", 1)
	store.addToCart("u1", "p-mug", "", 1)
	store.addToCart("u1", "p-shirt", "", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)

	assert.Equal(t, []string{"p-mug", "p-shirt", "p-shirt/v-xl"}, store.stockReads)
	require.Len(t, o.Items, 3)
	assert.Equal(t, "Shirt (XL)", o.Items[0].ProductName, "items keep cart order")
	assert.Equal(t, "Mug", o.Items[1].ProductName)
}

func TestPlaceOrder_RepeatedProductExceedingStock(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-mug", "", 3)
	store.addToCart("u1", "p-mug", "", 3)

	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.ErrorIs(t, err, ErrInsufficientStock)

	var se *StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []StockShortage{{ProductID: "p-mug", Name: "Mug", Required: 3, Available: 2}}, se.Details)
	assert.Equal(t, []string{"p-mug"}, store.stockReads, "one lock per stock row")
	assertUntouched(t, store, pub, "u1", 2)
}

func TestPlaceOrder_StockGuardMissRollsBack(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)
	store.missOn["DecrementStock"] = true

	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, KindBusiness, KindOf(err))
	assertUntouched(t, store, pub, "u1", 2)
}

func TestPlaceOrder_WalletDebitGuardMissRollsBack(t *testing.T) {
	svc, store, pub := newTestService(t)
	store.st.wallets["u1"] = decimal.NewFromInt(2000)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)
	store.missOn["Debit"] = true

	_, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodWallet))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assertUntouched(t, store, pub, "u1", 2)
	assert.Empty(t, store.snapshot().delivery)
	assert.True(t, store.snapshot().wallets["u1"].Equal(decimal.NewFromInt(2000)))
}

func TestPlaceOrder_TotalSurvivesPriceChange(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addToCart("u1", "p-shirt", "", 2)
	store.addToCart("u1", "p-mug", "", 1)

	o, err := svc.PlaceOrder(context.Background(), validRequest("u1", payment.MethodCOD))
	require.NoError(t, err)

	store.mu.Lock()
	shirt := store.st.products["p-shirt"]
	shirt.Price = decimal.NewFromInt(750)
	store.st.products["p-shirt"] = shirt
	store.mu.Unlock()

	st := store.snapshot()
	assert.True(t, st.orders[o.ID].Total.Equal(decimal.NewFromInt(1350)), "total = %s", st.orders[o.ID].Total)
	sum := st.orders[o.ID].ShippingFee
	for _, it := range st.items[o.ID] {
		sum = sum.Add(it.LineTotal())
	}
	assert.True(t, sum.Equal(st.orders[o.ID].Total), "items + shipping = %s", sum)
	assert.True(t, st.items[o.ID][0].UnitPrice.Equal(decimal.NewFromInt(500)))
	assert.True(t, st.payments[o.ID].Amount.Equal(decimal.NewFromInt(1350)))
}
