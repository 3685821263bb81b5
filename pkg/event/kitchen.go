package event

import "time"

const (
	KitchenOrdersTopic         = "kitchen.orders"
	EventKitchenOrderArrived   = "kitchen.order.arrived"
	EventKitchenOrderCompleted = "kitchen.order.completed"
	EventKitchenOrderCancelled = "kitchen.order.cancelled"
	EventKitchenOrderFailed    = "kitchen.order.completion_failed"
	EventKitchenOrderStatus    = "kitchen.order.status_changed"
)

// KitchenOrderEvent is what kitchen displays receive over the live stream.
type KitchenOrderEvent struct {
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	OrderID       int64     `json:"order_id"`
	Table         int       `json:"table"`
	Status        string    `json:"status"`
	Products      string    `json:"products,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Total         string    `json:"total,omitempty"`
	SubmittedTime string    `json:"submitted_time,omitempty"`
	Error         string    `json:"error,omitempty"`
}
