package kitchen

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/shopspring/decimal"
)

// MockOrderStore is an in-memory pending collection.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[int64]order.Pending

	ListFunc   func(ctx context.Context) ([]order.Pending, error)
	GetFunc    func(ctx context.Context, id int64) (order.Pending, bool, error)
	RemoveFunc func(ctx context.Context, id int64) (bool, error)
}

func NewMockOrderStore(orders ...order.Pending) *MockOrderStore {
	m := &MockOrderStore{orders: make(map[int64]order.Pending)}
	for _, p := range orders {
		m.orders[p.ID] = p
	}
	return m
}

func (m *MockOrderStore) Add(p order.Pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[p.ID] = p
}

func (m *MockOrderStore) List(ctx context.Context) ([]order.Pending, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Pending, 0, len(m.orders))
	for _, p := range m.orders {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockOrderStore) Get(ctx context.Context, id int64) (order.Pending, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.orders[id]
	return p, ok, nil
}

func (m *MockOrderStore) Remove(ctx context.Context, id int64) (bool, error) {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *MockOrderStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// MockSink records calls and fails when RecordFunc says so.
type MockSink struct {
	mu         sync.Mutex
	records    []order.Terminated
	RecordFunc func(ctx context.Context, p order.Pending, at time.Time) error
}

func (m *MockSink) Record(ctx context.Context, p order.Pending, at time.Time) error {
	if m.RecordFunc != nil {
		if err := m.RecordFunc(ctx, p, at); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, order.NewTerminated(p, at))
	return nil
}

func (m *MockSink) Records() []order.Terminated {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]order.Terminated(nil), m.records...)
}

// MockLocalLog is an in-memory LocalLog.
type MockLocalLog struct {
	mu         sync.Mutex
	records    []order.Terminated
	AppendFunc func(ctx context.Context, rec order.Terminated) error
}

func (m *MockLocalLog) Append(ctx context.Context, rec order.Terminated) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MockLocalLog) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []order.Terminated{}
	for _, r := range m.records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockPublisher implements events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	published   []PublishedMessage
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type PublishedMessage struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Data: msg})
	return nil
}

func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.published...)
}

// MockNotifier captures broadcast events.
type MockNotifier struct {
	mu     sync.Mutex
	events []event.KitchenOrderEvent
}

func (m *MockNotifier) Broadcast(evt event.KitchenOrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *MockNotifier) Events() []event.KitchenOrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.KitchenOrderEvent(nil), m.events...)
}

func (m *MockNotifier) Types() []string {
	types := []string{}
	for _, e := range m.Events() {
		types = append(types, e.EventType)
	}
	return types
}

var errBoom = errors.New("boom")

var (
	burger = catalog.Item{ID: 1, Name: "Hamburguesa Clásica", UnitPrice: decimal.RequireFromString("8.99"), Icon: "🍔"}
	cola   = catalog.Item{ID: 9, Name: "Coca Cola", UnitPrice: decimal.RequireFromString("3.99"), Icon: "🥤"}
)

func newPending(id int64, table int) order.Pending {
	return order.Pending{
		ID:            id,
		Table:         table,
		Lines:         []order.Line{{Item: burger, Quantity: 1}},
		SubmittedTime: "12:00:00",
		SubmittedDate: "2024-06-10",
		SubmittedAt:   time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		Status:        "pending",
	}
}

func pendingIDs(orders []order.Pending) []int64 {
	out := make([]int64, 0, len(orders))
	for _, p := range orders {
		out = append(out, p.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
