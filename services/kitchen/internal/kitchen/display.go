package kitchen

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/aquamarinepk/aqm"
	"golang.org/x/sync/errgroup"
)

// DefaultSyncInterval is the polling period of the sync loop.
const DefaultSyncInterval = 3 * time.Second

// PendingLister reads the shared pending collection.
type PendingLister interface {
	List(ctx context.Context) ([]order.Pending, error)
}

// ChangeWatcher is implemented by stores that can signal writes made by
// other views.
type ChangeWatcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Notifier receives display events, typically to forward them to
// connected screens.
type Notifier interface {
	Broadcast(evt event.KitchenOrderEvent)
}

// Display is the kitchen's view of pending orders. It surfaces each order
// once, in ascending id order, and only drops an order when told to by
// Forget.
type Display struct {
	mu sync.RWMutex
	// orders surfaced so far, indexed by order id
	orders map[int64]order.Pending
	// forgotten holds the generation at which an id was dropped while a
	// reconciliation was reading the store. Emptied when none is running.
	forgotten   map[int64]uint64
	generation  uint64
	reconciling int

	// emitMu keeps each reconciliation's arrivals contiguous on screens.
	emitMu sync.Mutex

	store    PendingLister
	interval time.Duration
	triggers []<-chan struct{}
	notifier Notifier
	logger   aqm.Logger

	cancel context.CancelFunc
	done   chan error
}

type DisplayOption func(*Display)

func WithSyncInterval(d time.Duration) DisplayOption {
	return func(disp *Display) {
		if d > 0 {
			disp.interval = d
		}
	}
}

// WithTrigger adds a signal source, such as push channel announcements,
// that runs a reconciliation on every receive.
func WithTrigger(ch <-chan struct{}) DisplayOption {
	return func(disp *Display) {
		if ch != nil {
			disp.triggers = append(disp.triggers, ch)
		}
	}
}

func WithNotifier(n Notifier) DisplayOption {
	return func(disp *Display) {
		disp.notifier = n
	}
}

func NewDisplay(store PendingLister, logger aqm.Logger, opts ...DisplayOption) *Display {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	d := &Display{
		orders:    make(map[int64]order.Pending),
		forgotten: make(map[int64]uint64),
		store:    store,
		interval: DefaultSyncInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reconcile surfaces the orders in the store that have not been seen yet
// and returns them in ascending id order. It never removes orders.
func (d *Display) Reconcile(ctx context.Context) ([]order.Pending, error) {
	d.mu.Lock()
	started := d.generation
	d.reconciling++
	d.mu.Unlock()

	current, err := d.store.List(ctx)

	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	fresh := make([]order.Pending, 0)
	if err == nil {
		for _, p := range current {
			if _, known := d.orders[p.ID]; known {
				continue
			}
			// dropped after the read began, the read is stale for it
			if at, ok := d.forgotten[p.ID]; ok && at > started {
				continue
			}
			fresh = append(fresh, p)
		}
		sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })
		for _, p := range fresh {
			d.orders[p.ID] = p
		}
	}
	d.reconciling--
	if d.reconciling == 0 && len(d.forgotten) > 0 {
		d.forgotten = make(map[int64]uint64)
	}
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	for _, p := range fresh {
		d.logger.Info("new order arrived", "order_id", p.ID, "table", p.Table, "products", p.Products())
		d.broadcast(newKitchenEvent(event.EventKitchenOrderArrived, p, orderstatus.Statuses.Pending))
	}

	return fresh, nil
}

// Forget discards an order from the display.
func (d *Display) Forget(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forgetLocked(id)
}

func (d *Display) forgetLocked(id int64) {
	delete(d.orders, id)
	if d.reconciling > 0 {
		d.generation++
		d.forgotten[id] = d.generation
	}
}

// Withdraw forgets an order that another kitchen view completed or
// cancelled and tells connected screens. It reports whether the order was
// on display.
func (d *Display) Withdraw(id int64, reason string) bool {
	d.mu.Lock()
	p, ok := d.orders[id]
	d.forgetLocked(id)
	d.mu.Unlock()

	if !ok {
		return false
	}

	eventType, status := event.EventKitchenOrderCompleted, orderstatus.Statuses.Terminated
	if reason == event.ReasonCancelled {
		eventType, status = event.EventKitchenOrderCancelled, orderstatus.Statuses.Cancelled
	}
	d.logger.Info("order withdrawn by another view", "order_id", id, "reason", reason)
	d.broadcast(newKitchenEvent(eventType, p, status))
	return true
}

// Known reports whether the order was surfaced and not forgotten.
func (d *Display) Known(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.orders[id]
	return ok
}

func (d *Display) Get(id int64) (order.Pending, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.orders[id]
	return p, ok
}

// Orders returns surfaced orders in ascending id order.
func (d *Display) Orders() []order.Pending {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]order.Pending, 0, len(d.orders))
	for _, p := range d.orders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of surfaced orders.
func (d *Display) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.orders)
}

// Run reconciles once and then on every timer tick, store change and
// trigger signal until ctx is done.
func (d *Display) Run(ctx context.Context) error {
	d.reconcileAndLog(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.reconcileAndLog(ctx)
			}
		}
	})

	if w, ok := d.store.(ChangeWatcher); ok {
		changes, err := w.Watch(ctx)
		switch {
		case errors.Is(err, pending.ErrWatchUnsupported):
			d.logger.Info("store has no change notifications, relying on polling")
		case err != nil:
			d.logger.Error("cannot watch store, relying on polling", "error", err)
		default:
			g.Go(func() error { return d.follow(ctx, changes) })
		}
	}

	for _, trigger := range d.triggers {
		trigger := trigger
		g.Go(func() error { return d.follow(ctx, trigger) })
	}

	return g.Wait()
}

func (d *Display) follow(ctx context.Context, signals <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			d.reconcileAndLog(ctx)
		}
	}
}

func (d *Display) reconcileAndLog(ctx context.Context) {
	if _, err := d.Reconcile(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("reconciliation failed", "error", err)
	}
}

// Start runs the sync loop in the background.
func (d *Display) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan error, 1)

	go func() {
		d.done <- d.Run(runCtx)
	}()

	d.logger.Info("kitchen sync loop started", "interval", d.interval.String())
	return nil
}

// Stop ends the sync loop and waits for it to return.
func (d *Display) Stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()

	select {
	case err := <-d.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Display) broadcast(evt event.KitchenOrderEvent) {
	if d.notifier != nil {
		d.notifier.Broadcast(evt)
	}
}

func newKitchenEvent(eventType string, p order.Pending, status orderstatus.Status) event.KitchenOrderEvent {
	return event.KitchenOrderEvent{
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		OrderID:       p.ID,
		Table:         p.Table,
		Status:        status.Code(),
		Products:      p.Products(),
		Notes:         p.Notes,
		Total:         p.Total().StringFixed(2),
		SubmittedTime: p.SubmittedTime,
	}
}
