package pending

import (
	"context"
	"time"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/shopspring/decimal"
)

// MockBucket wraps a MemoryBucket, counting writes and allowing overrides
type MockBucket struct {
	*MemoryBucket
	Puts       int
	Updates    int
	GetFunc    func(ctx context.Context, key string) ([]byte, uint64, error)
	PutFunc    func(ctx context.Context, key string, value []byte) (uint64, error)
	UpdateFunc func(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

func NewMockBucket() *MockBucket {
	return &MockBucket{MemoryBucket: NewMemoryBucket()}
}

func (m *MockBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return m.MemoryBucket.Get(ctx, key)
}

func (m *MockBucket) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	m.Puts++
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, value)
	}
	return m.MemoryBucket.Put(ctx, key, value)
}

func (m *MockBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	m.Updates++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, value, revision)
	}
	return m.MemoryBucket.Update(ctx, key, value, revision)
}

func newPending(id int64, table int) order.Pending {
	return order.Pending{
		ID:    id,
		Table: table,
		Lines: []order.Line{
			{
				Item:     catalog.Item{ID: 1, Name: "Hamburguesa Clásica", UnitPrice: decimal.RequireFromString("8.99")},
				Quantity: 1,
			},
		},
		SubmittedTime: "12:00:00",
		SubmittedDate: "2024-03-15",
		SubmittedAt:   time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Status:        "pending",
	}
}

func ids(orders []order.Pending) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
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
