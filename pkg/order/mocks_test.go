package order

import (
	"context"
	"sync"
)

// MockAppender is a test mock for PendingAppender
type MockAppender struct {
	mu         sync.Mutex
	Appended   []Pending
	AppendFunc func(ctx context.Context, p Pending) error
}

func (m *MockAppender) Append(ctx context.Context, p Pending) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, p)
	return nil
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}
