package event

import "time"

const (
	PendingOrdersTopic  = "orders.pending"
	EventOrderSubmitted = "order.pending.submitted"
	EventOrderRemoved   = "order.pending.removed"
)

const (
	ReasonTerminated = "terminated"
	ReasonCancelled  = "cancelled"
)

// PendingOrderEvent announces a change to the pending collection. It is a
// trigger only: receivers reread the collection instead of trusting the
// payload.
type PendingOrderEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    int64     `json:"order_id"`
	Table      int       `json:"table"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"`
}
