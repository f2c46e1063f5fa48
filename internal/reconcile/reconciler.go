package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ecommkit/storefront/internal/domain"
	"github.com/ecommkit/storefront/internal/orders"
)

var (
	meter = otel.Meter("reconcile")

	ordersPlaced, _ = meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders transitioned to placed by payment reconciliation"))
	duplicateEvents, _ = meter.Int64Counter("duplicate_completion_events_total",
		metric.WithDescription("Completion events ignored because the order was already placed"))
	stepFailures, _ = meter.Int64Counter("reconciliation_failures_total",
		metric.WithDescription("Reconciliation steps recorded as durable failures"))
)

const (
	StepTransition = "transition"
	StepClearCart  = "clear_cart"
	StepStock      = "decrement_stock"
)

// OrderLedger is the slice of order persistence reconciliation needs.
type OrderLedger interface {
	MarkPlaced(ctx context.Context, orderID, eventID string) (*domain.Order, error)
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// StockGuard applies the authoritative post-payment decrement.
type StockGuard interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

type FailureRecorder interface {
	Record(ctx context.Context, f Failure) error
}

// Reconciler consumes payment completion events exactly-once-in-effect.
// The order's durable status is the idempotency boundary: only the
// event that wins the pending -> placed transition runs the cart clear
// and stock decrements, so at-least-once delivery never doubles a side
// effect. It holds no in-process state and is safe to run on any
// instance.
type Reconciler struct {
	ledger   OrderLedger
	carts    CartClearer
	stock    StockGuard
	failures FailureRecorder
	logger   *slog.Logger
}

func NewReconciler(ledger OrderLedger, carts CartClearer, stock StockGuard, failures FailureRecorder, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		carts:    carts,
		stock:    stock,
		failures: failures,
		logger:   logger,
	}
}

// Handle processes one completion event. It returns an error only for
// transient infrastructure failures where redelivery is the right
// answer; everything else is either acknowledged as a no-op or recorded
// durably for operators.
func (r *Reconciler) Handle(ctx context.Context, event domain.PaymentCompletedEvent) error {
	order, err := r.ledger.MarkPlaced(ctx, event.OrderID, event.EventID)

	switch {
	case errors.Is(err, orders.ErrAlreadyPlaced):
		// Duplicate delivery on an already-placed order: success, no
		// further mutation.
		r.logger.Info("duplicate completion event ignored", "order_id", event.OrderID, "event_id", event.EventID)
		duplicateEvents.Add(ctx, 1)
		return nil

	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrOrderCancelled):
		// A completion event for an unknown or cancelled order signals
		// a consistency bug upstream. Record it and acknowledge so the
		// event is not retried forever.
		r.logger.Error("completion event anomaly", "error", err, "order_id", event.OrderID, "event_id", event.EventID)
		stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", StepTransition)))
		return r.failures.Record(ctx, Failure{
			OrderID: event.OrderID,
			EventID: event.EventID,
			Step:    StepTransition,
			Detail:  err.Error(),
		})

	case err != nil:
		return fmt.Errorf("mark order %s placed: %w", event.OrderID, err)
	}

	r.logger.Info("order placed", "order_id", order.ID, "event_id", event.EventID, "final_price", order.FinalPrice)
	ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(order.PaymentMethod)),
	))

	// The order is now placed. Failures past this point are surfaced
	// durably; redelivery of the same event would be a no-op above and
	// cannot repair them.
	if err := r.carts.Clear(ctx, order.UserID); err != nil {
		if recErr := r.recordFailure(ctx, event, StepClearCart, err); recErr != nil {
			return recErr
		}
	}

	for _, item := range order.Items {
		if err := r.stock.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			detail := fmt.Sprintf("product %s qty %d: %v", item.ProductID, item.Quantity, err)
			if recErr := r.recordFailure(ctx, event, StepStock, errors.New(detail)); recErr != nil {
				return recErr
			}
		}
	}

	return nil
}

// HandleMessage adapts Handle to the messaging consumer's payload
// contract.
func (r *Reconciler) HandleMessage(ctx context.Context, payload []byte) error {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment completed event: %w", err)
	}
	return r.Handle(ctx, event)
}

func (r *Reconciler) recordFailure(ctx context.Context, event domain.PaymentCompletedEvent, step string, cause error) error {
	r.logger.Error("reconciliation step failed", "step", step, "error", cause,
		"order_id", event.OrderID, "event_id", event.EventID)
	stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))

	if err := r.failures.Record(ctx, Failure{
		OrderID: event.OrderID,
		EventID: event.EventID,
		Step:    step,
		Detail:  cause.Error(),
	}); err != nil {
		// If even the failure record cannot be written, bubble up so
		// the consumer does not commit the message.
		return fmt.Errorf("record reconciliation failure: %w", err)
	}

	return nil
}
