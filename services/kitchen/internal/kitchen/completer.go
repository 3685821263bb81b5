package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
)

var (
	ErrNotPending           = errors.New("order is not pending")
	ErrInFlight             = errors.New("order completion already in progress")
	ErrConfirmationRequired = errors.New("cancellation requires confirmation")
	ErrCompletionFailed     = errors.New("completion sink failed")
)

// OrderStore is the part of the pending store the kitchen mutates.
type OrderStore interface {
	Get(ctx context.Context, id int64) (order.Pending, bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

// Forgetter drops an order from the kitchen display.
type Forgetter interface {
	Forget(id int64)
}

// Completer drives the per-order kitchen state machine:
// pending -> completing -> terminated, completing -> pending on sink
// failure, and pending -> cancelled on confirmed cancel.
type Completer struct {
	mu       sync.Mutex
	inFlight map[int64]struct{}

	store     OrderStore
	sink      CompletionSink
	display   Forgetter
	publisher events.Publisher
	notifier  Notifier
	source    string
	now       func() time.Time
	logger    aqm.Logger
}

type CompleterDeps struct {
	Store     OrderStore
	Sink      CompletionSink
	Display   Forgetter
	Publisher events.Publisher
	Notifier  Notifier
	Source    string
	Now       func() time.Time
}

func NewCompleter(deps CompleterDeps, logger aqm.Logger) *Completer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Completer{
		inFlight:  make(map[int64]struct{}),
		store:     deps.Store,
		sink:      deps.Sink,
		display:   deps.Display,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		source:    deps.Source,
		now:       now,
		logger:    logger,
	}
}

// Status returns completing while a sink call for id is outstanding and
// pending otherwise.
func (c *Completer) Status(id int64) orderstatus.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return orderstatus.Statuses.Completing
	}
	return orderstatus.Statuses.Pending
}

// Complete records the order through the sink and, on success, removes it
// from the pending store. On sink failure the order stays pending and the
// caller may try again.
func (c *Completer) Complete(ctx context.Context, id int64) error {
	if !c.begin(id) {
		return fmt.Errorf("%w: %d", ErrInFlight, id)
	}
	defer c.end(id)

	p, ok, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("read pending order %d: %w", id, err)
	}
	if !ok {
		c.forget(id)
		return fmt.Errorf("%w: %d", ErrNotPending, id)
	}

	c.broadcast(newKitchenEvent(event.EventKitchenOrderStatus, p, orderstatus.Statuses.Completing))

	completedAt := c.now()
	if err := c.sink.Record(ctx, p, completedAt); err != nil {
		c.logger.Error("order completion failed", "order_id", id, "error", err)
		evt := newKitchenEvent(event.EventKitchenOrderFailed, p, orderstatus.Statuses.Pending)
		evt.Error = err.Error()
		c.broadcast(evt)
		return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	if _, err := c.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove completed order %d: %w", id, err)
	}
	c.forget(id)

	c.logger.Info("order completed", "order_id", id, "table", p.Table)
	c.broadcast(newKitchenEvent(event.EventKitchenOrderCompleted, p, orderstatus.Statuses.Terminated))
	c.announce(ctx, p, event.ReasonTerminated)
	return nil
}

// Cancel removes the order without recording it. It does nothing unless
// confirmed is true.
func (c *Completer) Cancel(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if !c.begin(id) {
		return fmt.Errorf("%w: %d", ErrInFlight, id)
	}
	defer c.end(id)

	p, _, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("read pending order %d: %w", id, err)
	}

	removed, err := c.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("remove cancelled order %d: %w", id, err)
	}
	c.forget(id)

	c.logger.Info("order cancelled", "order_id", id, "table", p.Table, "products", p.Products(), "removed", removed)

	if !removed {
		return nil
	}

	c.broadcast(newKitchenEvent(event.EventKitchenOrderCancelled, p, orderstatus.Statuses.Cancelled))
	c.announce(ctx, p, event.ReasonCancelled)
	return nil
}

func (c *Completer) begin(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

func (c *Completer) end(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

func (c *Completer) forget(id int64) {
	if c.display != nil {
		c.display.Forget(id)
	}
}

func (c *Completer) broadcast(evt event.KitchenOrderEvent) {
	if c.notifier != nil {
		c.notifier.Broadcast(evt)
	}
}

func (c *Completer) announce(ctx context.Context, p order.Pending, reason string) {
	if c.publisher == nil {
		return
	}

	evt := event.PendingOrderEvent{
		EventID:    uuid.NewString(),
		EventType:  event.EventOrderRemoved,
		OccurredAt: c.now().UTC(),
		OrderID:    p.ID,
		Table:      p.Table,
		Reason:     reason,
		Source:     c.source,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		c.logger.Errorf("cannot marshal removed event: %v", err)
		return
	}

	if err := c.publisher.Publish(ctx, event.PendingOrdersTopic, data); err != nil {
		c.logger.Errorf("cannot publish removed event: %v", err)
	}
}
