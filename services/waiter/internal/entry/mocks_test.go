package entry

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/order"
)

// MockAppender implements order.PendingAppender for testing
type MockAppender struct {
	mu         sync.Mutex
	appended   []order.Pending
	AppendFunc func(ctx context.Context, p order.Pending) error
}

func (m *MockAppender) Append(ctx context.Context, p order.Pending) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, p)
	return nil
}

func (m *MockAppender) Appended() []order.Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Pending(nil), m.appended...)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func builderFactory(store order.PendingAppender, tables int) func(string) *order.Builder {
	ids := order.NewIDSequence(nil)
	return func(id string) *order.Builder {
		return order.NewBuilder(store,
			order.WithIDSequence(ids),
			order.WithMaxTable(tables),
			order.WithSource(id),
		)
	}
}
