package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

// MockSubscriber implements events.Subscriber for testing
type MockSubscriber struct {
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	return nil
}

type MockWithdrawer struct {
	WithdrawFunc func(id int64, reason string) bool
	calls        []int64
}

func (m *MockWithdrawer) Withdraw(id int64, reason string) bool {
	m.calls = append(m.calls, id)
	if m.WithdrawFunc != nil {
		return m.WithdrawFunc(id, reason)
	}
	return true
}

func encode(t *testing.T, evt event.PendingOrderEvent) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestPendingOrderSubscriberStart(t *testing.T) {
	tests := []struct {
		name      string
		subErr    error
		wantErr   bool
		wantTopic string
	}{
		{name: "subscribes to pending topic", wantTopic: event.PendingOrdersTopic},
		{name: "subscribe failure", subErr: errors.New("no broker"), wantErr: true, wantTopic: event.PendingOrdersTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTopic string
			sub := &MockSubscriber{
				SubscribeFunc: func(ctx context.Context, topic string, handler events.HandlerFunc) error {
					gotTopic = topic
					return tt.subErr
				},
			}

			s := NewPendingOrderSubscriber(sub, nil, "kitchen-1", aqm.NewNoopLogger())
			err := s.Start(context.Background())

			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotTopic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", gotTopic, tt.wantTopic)
			}
		})
	}
}

func TestPendingOrderSubscriberHandleEvent(t *testing.T) {
	tests := []struct {
		name         string
		msg          func(t *testing.T) []byte
		wantSignal   bool
		wantWithdraw []int64
	}{
		{
			name: "submitted order signals reconciliation",
			msg: func(t *testing.T) []byte {
				return encode(t, event.PendingOrderEvent{EventType: event.EventOrderSubmitted, OrderID: 10, Source: "waiter-1"})
			},
			wantSignal: true,
		},
		{
			name: "removed order is withdrawn",
			msg: func(t *testing.T) []byte {
				return encode(t, event.PendingOrderEvent{EventType: event.EventOrderRemoved, OrderID: 11, Reason: event.ReasonTerminated, Source: "kitchen-2"})
			},
			wantWithdraw: []int64{11},
		},
		{
			name: "own events are ignored",
			msg: func(t *testing.T) []byte {
				return encode(t, event.PendingOrderEvent{EventType: event.EventOrderRemoved, OrderID: 12, Source: "kitchen-1"})
			},
		},
		{
			name: "malformed payload is dropped",
			msg: func(t *testing.T) []byte {
				return []byte("{not json")
			},
		},
		{
			name: "unknown event type",
			msg: func(t *testing.T) []byte {
				return encode(t, event.PendingOrderEvent{EventType: "order.other", OrderID: 13})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handler events.HandlerFunc
			sub := &MockSubscriber{
				SubscribeFunc: func(ctx context.Context, topic string, h events.HandlerFunc) error {
					handler = h
					return nil
				},
			}
			display := &MockWithdrawer{}

			s := NewPendingOrderSubscriber(sub, display, "kitchen-1", aqm.NewNoopLogger())
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			if err := handler(context.Background(), tt.msg(t)); err != nil {
				t.Fatalf("handler error = %v", err)
			}

			select {
			case <-s.Signals():
				if !tt.wantSignal {
					t.Error("unexpected reconciliation signal")
				}
			case <-time.After(20 * time.Millisecond):
				if tt.wantSignal {
					t.Error("expected reconciliation signal")
				}
			}

			if len(display.calls) != len(tt.wantWithdraw) {
				t.Fatalf("withdraw calls = %v, want %v", display.calls, tt.wantWithdraw)
			}
			for i, id := range tt.wantWithdraw {
				if display.calls[i] != id {
					t.Errorf("withdraw[%d] = %d, want %d", i, display.calls[i], id)
				}
			}
		})
	}
}

func TestPendingOrderSubscriberCoalescesSignals(t *testing.T) {
	var handler events.HandlerFunc
	sub := &MockSubscriber{
		SubscribeFunc: func(ctx context.Context, topic string, h events.HandlerFunc) error {
			handler = h
			return nil
		},
	}

	s := NewPendingOrderSubscriber(sub, nil, "", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	msg := encode(t, event.PendingOrderEvent{EventType: event.EventOrderSubmitted, OrderID: 1})
	for i := 0; i < 5; i++ {
		if err := handler(context.Background(), msg); err != nil {
			t.Fatalf("handler error = %v", err)
		}
	}

	<-s.Signals()
	select {
	case <-s.Signals():
		t.Error("expected a single pending signal")
	default:
	}
}
