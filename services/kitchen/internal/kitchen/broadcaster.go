package kitchen

import (
	"sync"

	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const subscriberBuffer = 100

// Broadcaster fans kitchen events out to connected screens.
type Broadcaster struct {
	logger aqm.Logger

	mu          sync.RWMutex
	subscribers map[string]chan event.KitchenOrderEvent
}

func NewBroadcaster(logger aqm.Logger) *Broadcaster {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Broadcaster{
		logger:      logger,
		subscribers: make(map[string]chan event.KitchenOrderEvent),
	}
}

// Subscribe registers a new screen and returns its id and event channel.
func (b *Broadcaster) Subscribe() (string, <-chan event.KitchenOrderEvent) {
	id := uuid.NewString()
	ch := make(chan event.KitchenOrderEvent, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	b.logger.Info("new kitchen events subscriber", "subscriber_id", id)
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
		b.logger.Info("kitchen events subscriber disconnected", "subscriber_id", id)
	}
}

// Broadcast delivers evt to every subscriber. Slow subscribers miss events
// instead of blocking the sync loop.
func (b *Broadcaster) Broadcast(evt event.KitchenOrderEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Info("subscriber channel full, dropping event", "subscriber_id", id, "event_type", evt.EventType)
		}
	}
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
