package pkg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MockConfirmChannel implements confirmChannel for testing
type MockConfirmChannel struct {
	mu        sync.Mutex
	declared  []string
	published []amqp.Publishing

	PublishFunc func(ctx context.Context, exchange string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

func (m *MockConfirmChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declared = append(m.declared, name)
	return nil
}

func (m *MockConfirmChannel) PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, exchange, msg)
	}
	return nil, nil
}

func (m *MockConfirmChannel) Close() error { return nil }

func (m *MockConfirmChannel) counts() (declared, published int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.declared), len(m.published)
}

func newTestFanout(ch confirmChannel) *RabbitFanout {
	return &RabbitFanout{
		pubCh:   ch,
		logger:  aqm.NewNoopLogger(),
		declare: make(map[string]bool),
	}
}

func TestRabbitFanoutPublish(t *testing.T) {
	tests := []struct {
		name    string
		publish func(ctx context.Context, exchange string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
		wantErr bool
	}{
		{name: "no confirm mode"},
		{
			name: "publish error",
			publish: func(ctx context.Context, exchange string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
				return nil, errors.New("channel closed")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &MockConfirmChannel{PublishFunc: tt.publish}
			r := newTestFanout(ch)

			err := r.Publish(context.Background(), "orders.pending", []byte(`{}`))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRabbitFanoutDeclaresExchangeOnce(t *testing.T) {
	ch := &MockConfirmChannel{}
	r := newTestFanout(ch)

	for i := 0; i < 3; i++ {
		if err := r.Publish(context.Background(), "orders.pending", []byte(`{}`)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	declared, published := ch.counts()
	if declared != 1 || published != 3 {
		t.Errorf("declared = %d, published = %d, want 1 and 3", declared, published)
	}
}

// A publish abandoned before its confirm arrives must not stall or
// answer the publishes that follow it.
func TestRabbitFanoutAbandonedConfirmIsNotReused(t *testing.T) {
	ch := &MockConfirmChannel{
		PublishFunc: func(ctx context.Context, exchange string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
			// never confirmed by the broker
			return &amqp.DeferredConfirmation{}, nil
		},
	}
	r := newTestFanout(ch)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := r.Publish(ctx, "orders.pending", []byte(`{}`))
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Publish() #%d error = %v, want deadline exceeded", i, err)
		}
	}

	done := make(chan error, 1)
	ch.PublishFunc = nil
	go func() {
		done <- r.Publish(context.Background(), "orders.pending", []byte(`{}`))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Publish() after abandoned confirms error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked after abandoned confirms")
	}
}
