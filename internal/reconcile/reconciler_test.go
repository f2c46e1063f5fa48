package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ecommkit/storefront/internal/domain"
	"github.com/ecommkit/storefront/internal/orders"
)

type fakeLedger struct {
	order  *domain.Order
	status domain.OrderStatus
}

func (f *fakeLedger) MarkPlaced(_ context.Context, orderID, _ string) (*domain.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, orders.ErrOrderNotFound
	}
	switch f.status {
	case domain.OrderStatusPlaced:
		return nil, orders.ErrAlreadyPlaced
	case domain.OrderStatusCancelled:
		return nil, orders.ErrOrderCancelled
	}
	f.status = domain.OrderStatusPlaced
	placed := *f.order
	placed.Status = domain.OrderStatusPlaced
	return &placed, nil
}

type fakeCarts struct {
	clears int
	err    error
}

func (f *fakeCarts) Clear(context.Context, string) error {
	if f.err != nil {
		return f.err
	}
	f.clears++
	return nil
}

type fakeStock struct {
	decrements map[string]int
	err        error
}

func (f *fakeStock) DecrementStock(_ context.Context, productID string, quantity int) error {
	if f.err != nil {
		return f.err
	}
	if f.decrements == nil {
		f.decrements = make(map[string]int)
	}
	f.decrements[productID] += quantity
	return nil
}

type fakeFailures struct {
	recorded []Failure
	err      error
}

func (f *fakeFailures) Record(_ context.Context, failure Failure) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, failure)
	return nil
}

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: "P1", Name: "widget", FinalUnitPrice: 9000, Quantity: 2},
		},
		OrderPrice: 18000,
		FinalPrice: 18000,
		Status:     domain.OrderStatusPending,
	}
}

func completionEvent() domain.PaymentCompletedEvent {
	return domain.PaymentCompletedEvent{
		EventID:   "evt-1",
		OrderID:   "order-1",
		Timestamp: time.Now().UTC(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconciler_Handle(t *testing.T) {
	t.Run("places order, clears cart, decrements stock", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPending}
		carts := &fakeCarts{}
		stock := &fakeStock{}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, carts, stock, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ledger.status != domain.OrderStatusPlaced {
			t.Errorf("expected order placed, got %s", ledger.status)
		}
		if carts.clears != 1 {
			t.Errorf("expected 1 cart clear, got %d", carts.clears)
		}
		if stock.decrements["P1"] != 2 {
			t.Errorf("expected stock decrement of 2, got %d", stock.decrements["P1"])
		}
		if len(failures.recorded) != 0 {
			t.Errorf("expected no failures, got %+v", failures.recorded)
		}
	})

	t.Run("replayed event produces no additional side effect", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPending}
		carts := &fakeCarts{}
		stock := &fakeStock{}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, carts, stock, failures, testLogger())

		event := completionEvent()
		for i := 0; i < 3; i++ {
			if err := r.Handle(context.Background(), event); err != nil {
				t.Fatalf("delivery %d: unexpected error: %v", i+1, err)
			}
		}

		if carts.clears != 1 {
			t.Errorf("expected exactly 1 cart clear, got %d", carts.clears)
		}
		if stock.decrements["P1"] != 2 {
			t.Errorf("expected stock decremented exactly once (2 units), got %d", stock.decrements["P1"])
		}
	})

	t.Run("duplicate event with different id is still a no-op", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPlaced}
		carts := &fakeCarts{}
		stock := &fakeStock{}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, carts, stock, failures, testLogger())

		event := completionEvent()
		event.EventID = "evt-2"
		if err := r.Handle(context.Background(), event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if carts.clears != 0 || len(stock.decrements) != 0 {
			t.Error("expected no side effects on an already-placed order")
		}
		if len(failures.recorded) != 0 {
			t.Errorf("duplicate delivery is success, not a failure: %+v", failures.recorded)
		}
	})

	t.Run("unknown order is recorded as an anomaly and acknowledged", func(t *testing.T) {
		ledger := &fakeLedger{}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, &fakeCarts{}, &fakeStock{}, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(failures.recorded) != 1 {
			t.Fatalf("expected 1 recorded anomaly, got %d", len(failures.recorded))
		}
		if failures.recorded[0].Step != StepTransition {
			t.Errorf("expected step %q, got %q", StepTransition, failures.recorded[0].Step)
		}
	})

	t.Run("cancelled order is recorded as an anomaly", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusCancelled}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, &fakeCarts{}, &fakeStock{}, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(failures.recorded) != 1 {
			t.Fatalf("expected 1 recorded anomaly, got %d", len(failures.recorded))
		}
	})

	t.Run("stock conflict after placement is recorded, not retried", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPending}
		stock := &fakeStock{err: errors.New("stock conflict")}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, &fakeCarts{}, stock, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ledger.status != domain.OrderStatusPlaced {
			t.Errorf("order should stay placed despite decrement failure, got %s", ledger.status)
		}
		if len(failures.recorded) != 1 {
			t.Fatalf("expected 1 recorded failure, got %d", len(failures.recorded))
		}
		if failures.recorded[0].Step != StepStock {
			t.Errorf("expected step %q, got %q", StepStock, failures.recorded[0].Step)
		}
	})

	t.Run("cart clear failure is recorded and stock still decremented", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPending}
		carts := &fakeCarts{err: errors.New("cart store down")}
		stock := &fakeStock{}
		failures := &fakeFailures{}
		r := NewReconciler(ledger, carts, stock, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if stock.decrements["P1"] != 2 {
			t.Errorf("expected stock decrement despite cart failure, got %d", stock.decrements["P1"])
		}
		if len(failures.recorded) != 1 || failures.recorded[0].Step != StepClearCart {
			t.Errorf("expected a recorded clear_cart failure, got %+v", failures.recorded)
		}
	})

	t.Run("unwritable failure record propagates", func(t *testing.T) {
		ledger := &fakeLedger{order: pendingOrder(), status: domain.OrderStatusPending}
		stock := &fakeStock{err: errors.New("stock conflict")}
		failures := &fakeFailures{err: errors.New("db down")}
		r := NewReconciler(ledger, &fakeCarts{}, stock, failures, testLogger())

		if err := r.Handle(context.Background(), completionEvent()); err == nil {
			t.Fatal("expected an error when the failure record cannot be written")
		}
	})
}
