package domain

import "time"

// PaymentCompletedEvent is emitted when the payment provider confirms a
// checkout session. Delivery is at-least-once: the same event may arrive
// more than once, out of order, or after a process restart.
type PaymentCompletedEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}
