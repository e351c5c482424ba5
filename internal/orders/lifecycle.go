package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
)

// effect runs inside the transition's transaction, before the status write.
type effect func(ctx context.Context, tx Tx, o *Order, p *Payment) error

// Cancel is allowed while the order is pending or processing. Items go
// back to stock and a completed wallet payment is credited back.
func (s *Service) Cancel(ctx context.Context, userID, orderID, reason string) (*Order, error) {
	note := "Cancelled by customer"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	return s.transition(ctx, ActorCustomer, userID, orderID, StatusCancelled, note, cancelEffect)
}

// RequestReturn is allowed for delivered orders inside the return window.
func (s *Service) RequestReturn(ctx context.Context, userID, orderID, reason string) (*Order, error) {
	note := "Return requested"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	return s.transition(ctx, ActorCustomer, userID, orderID, StatusReturnRequested, note,
		func(ctx context.Context, tx Tx, o *Order, _ *Payment) error {
			at, err := tx.Orders().StatusReachedAt(ctx, o.ID, StatusDelivered)
			if err != nil {
				return fmt.Errorf("delivery time: %w", err)
			}
			if s.now().Sub(at) > s.ReturnWindow {
				return ErrReturnWindowClosed
			}
			return nil
		})
}

// Refund lets the customer settle a returned order paid from the wallet.
// Every other method is refunded by an operator.
func (s *Service) Refund(ctx context.Context, userID, orderID string) (*Order, error) {
	return s.transition(ctx, ActorCustomer, userID, orderID, StatusRefunded, "Refunded to wallet",
		func(ctx context.Context, tx Tx, o *Order, p *Payment) error {
			if p.Method != payment.MethodWallet {
				return ErrManualRefund
			}
			return refundToWallet(ctx, tx, o, p)
		})
}

// Advance applies an operator status change.
func (s *Service) Advance(ctx context.Context, orderID string, to Status, note string) (*Order, error) {
	if strings.TrimSpace(note) == "" {
		note = "Status changed to " + string(to)
	}
	var fx effect
	switch to {
	case StatusCancelled:
		fx = cancelEffect
	case StatusDelivered:
		fx = func(ctx context.Context, tx Tx, o *Order, p *Payment) error {
			if p.Method == payment.MethodCOD && p.Status == payment.StatusPending {
				return tx.Orders().SetPaymentStatus(ctx, o.ID, payment.StatusCompleted)
			}
			return nil
		}
	case StatusRefunded:
		fx = func(ctx context.Context, tx Tx, o *Order, p *Payment) error {
			if p.Method == payment.MethodWallet {
				return refundToWallet(ctx, tx, o, p)
			}
			return tx.Orders().SetPaymentStatus(ctx, o.ID, payment.StatusRefunded)
		}
	}
	return s.transition(ctx, ActorOperator, "", orderID, to, note, fx)
}

func cancelEffect(ctx context.Context, tx Tx, o *Order, p *Payment) error {
	items, err := tx.Orders().Items(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		if err := tx.Stock().IncrementStock(ctx, it.ProductID, it.VariationID, it.Qty); err != nil {
			return err
		}
	}
	if p.Method == payment.MethodWallet && p.Status == payment.StatusCompleted {
		return refundToWallet(ctx, tx, o, p)
	}
	return nil
}

func refundToWallet(ctx context.Context, tx Tx, o *Order, p *Payment) error {
	if p.Status == payment.StatusRefunded {
		return fmt.Errorf("payment already refunded: %w", ErrInvalidTransition)
	}
	if err := tx.Wallets().Credit(ctx, o.UserID, p.Amount); err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	return tx.Orders().SetPaymentStatus(ctx, o.ID, payment.StatusRefunded)
}

// transition is the shared shape of every status change: lock the order,
// check ownership and the state machine, run the side effect, write the
// guarded status update, append history, queue an email. All or nothing.
func (s *Service) transition(ctx context.Context, actor Actor, userID, orderID string, to Status, note string, fx effect) (*Order, error) {
	var out Order
	var from Status
	err := s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if actor == ActorCustomer && o.UserID != userID {
			return ErrNotFound
		}
		if !CanTransition(actor, o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		p, err := tx.Orders().Payment(ctx, o.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if fx != nil {
			if err := fx(ctx, tx, &o, &p); err != nil {
				return err
			}
		}

		ok, err := tx.Orders().SetStatus(ctx, o.ID, o.Status, to)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
		}
		if err := tx.Orders().AppendHistory(ctx, o.ID, to, note); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if err := tx.Emails().Enqueue(ctx, statusEmail(o, to, note)); err != nil {
			return fmt.Errorf("queue email: %w", err)
		}

		from = o.Status
		o.Status = to
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		s.emit(ctx, EventOrderStatusChanged, out.ID, OrderStatusChangedPayload{
			OrderID: out.ID, UserID: out.UserID, From: from, To: to, Note: note, ChangedAt: s.now().UTC(),
		})
	}
	return &out, nil
}

var statusSubjects = map[Status]string{
	StatusProcessing:      "is being processed",
	StatusShipped:         "has shipped",
	StatusDelivered:       "was delivered",
	StatusCancelled:       "was cancelled",
	StatusReturnRequested: "return request received",
	StatusReturned:        "return received",
	StatusRefunded:        "was refunded",
}

func statusEmail(o Order, to Status, note string) notify.Email {
	return notify.Email{
		Recipient: o.Shipping.Email,
		Subject:   fmt.Sprintf("Order %s %s", o.ID, statusSubjects[to]),
		Body:      fmt.Sprintf("Hi %s,\n\n%s.\n\nCurrent status: %s\n", o.Shipping.Name, note, to),
	}
}
