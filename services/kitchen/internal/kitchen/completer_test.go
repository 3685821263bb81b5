package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/aquamarinepk/aqm"
)

var fixedNow = time.Date(2024, 6, 10, 12, 45, 0, 0, time.UTC)

type completerFixture struct {
	store     *MockOrderStore
	sink      *MockSink
	display   *Display
	publisher *MockPublisher
	notifier  *MockNotifier
	completer *Completer
}

func newCompleterFixture(orders ...order.Pending) *completerFixture {
	f := &completerFixture{
		store:     NewMockOrderStore(orders...),
		sink:      &MockSink{},
		publisher: NewMockPublisher(),
		notifier:  &MockNotifier{},
	}
	f.display = NewDisplay(f.store, nil)
	_, _ = f.display.Reconcile(context.Background())
	f.completer = NewCompleter(CompleterDeps{
		Store:     f.store,
		Sink:      f.sink,
		Display:   f.display,
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Source:    "kitchen-test",
		Now:       func() time.Time { return fixedNow },
	}, aqm.NewNoopLogger())
	return f
}

func TestCompleterComplete(t *testing.T) {
	tests := []struct {
		name        string
		orders      []order.Pending
		id          int64
		sinkErr     error
		wantErr     error
		wantRecords int
		wantStored  int
		wantEvents  []string
	}{
		{
			name:        "records and removes",
			orders:      []order.Pending{newPending(1, 4)},
			id:          1,
			wantRecords: 1,
			wantStored:  0,
			wantEvents:  []string{event.EventKitchenOrderStatus, event.EventKitchenOrderCompleted},
		},
		{
			name:       "sink failure keeps order pending",
			orders:     []order.Pending{newPending(1, 4)},
			id:         1,
			sinkErr:    errBoom,
			wantErr:    ErrCompletionFailed,
			wantStored: 1,
			wantEvents: []string{event.EventKitchenOrderStatus, event.EventKitchenOrderFailed},
		},
		{
			name:       "order no longer pending",
			orders:     []order.Pending{newPending(2, 4)},
			id:         1,
			wantErr:    ErrNotPending,
			wantStored: 1,
			wantEvents: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCompleterFixture(tt.orders...)
			if tt.sinkErr != nil {
				f.sink.RecordFunc = func(ctx context.Context, p order.Pending, at time.Time) error {
					return tt.sinkErr
				}
			}

			err := f.completer.Complete(context.Background(), tt.id)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Complete() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}

			if got := len(f.sink.Records()); got != tt.wantRecords {
				t.Errorf("records = %d, want %d", got, tt.wantRecords)
			}
			if got := f.store.Len(); got != tt.wantStored {
				t.Errorf("stored = %d, want %d", got, tt.wantStored)
			}
			if got := f.notifier.Types(); !equalStrings(got, tt.wantEvents) {
				t.Errorf("events = %v, want %v", got, tt.wantEvents)
			}
			if f.completer.Status(tt.id) != orderstatus.Statuses.Pending {
				t.Errorf("status after action = %s, want pending", f.completer.Status(tt.id).Code())
			}
		})
	}
}

func TestCompleterCompleteRemovesFromDisplay(t *testing.T) {
	f := newCompleterFixture(newPending(1, 4), newPending(2, 5))

	if err := f.completer.Complete(context.Background(), 1); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if f.display.Known(1) {
		t.Error("completed order still on display")
	}
	if !f.display.Known(2) {
		t.Error("other order dropped from display")
	}

	rec := f.sink.Records()[0]
	if !rec.CompletedAt.Equal(fixedNow) || rec.Table != 4 {
		t.Errorf("record = %+v", rec)
	}

	msgs := f.publisher.Messages()
	if len(msgs) != 1 || msgs[0].Topic != event.PendingOrdersTopic {
		t.Fatalf("published = %+v", msgs)
	}
	var evt event.PendingOrderEvent
	if err := json.Unmarshal(msgs[0].Data, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.EventType != event.EventOrderRemoved || evt.Reason != event.ReasonTerminated || evt.OrderID != 1 || evt.Source != "kitchen-test" {
		t.Errorf("event = %+v", evt)
	}
}

func TestCompleterRetryAfterFailure(t *testing.T) {
	f := newCompleterFixture(newPending(1, 4))
	calls := 0
	f.sink.RecordFunc = func(ctx context.Context, p order.Pending, at time.Time) error {
		calls++
		if calls == 1 {
			return errBoom
		}
		return nil
	}

	if err := f.completer.Complete(context.Background(), 1); !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("first Complete() error = %v", err)
	}
	if err := f.completer.Complete(context.Background(), 1); err != nil {
		t.Fatalf("retry Complete() error = %v", err)
	}
	if f.store.Len() != 0 {
		t.Errorf("stored = %d, want 0", f.store.Len())
	}
}

func TestCompleterInFlight(t *testing.T) {
	f := newCompleterFixture(newPending(1, 4))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.sink.RecordFunc = func(ctx context.Context, p order.Pending, at time.Time) error {
		close(entered)
		<-release
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		firstErr = f.completer.Complete(context.Background(), 1)
	}()

	<-entered
	if f.completer.Status(1) != orderstatus.Statuses.Completing {
		t.Errorf("status = %s, want completing", f.completer.Status(1).Code())
	}
	if err := f.completer.Complete(context.Background(), 1); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Complete() error = %v, want ErrInFlight", err)
	}
	if err := f.completer.Cancel(context.Background(), 1, true); !errors.Is(err, ErrInFlight) {
		t.Errorf("Cancel() error = %v, want ErrInFlight", err)
	}

	close(release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first Complete() error = %v", firstErr)
	}
	if len(f.sink.Records()) != 1 {
		t.Errorf("records = %d, want 1", len(f.sink.Records()))
	}
}

func TestCompleterCancel(t *testing.T) {
	tests := []struct {
		name       string
		orders     []order.Pending
		id         int64
		confirmed  bool
		wantErr    error
		wantStored int
		wantEvents []string
		wantPub    int
	}{
		{
			name:       "confirmed cancel removes without recording",
			orders:     []order.Pending{newPending(1, 4)},
			id:         1,
			confirmed:  true,
			wantStored: 0,
			wantEvents: []string{event.EventKitchenOrderCancelled},
			wantPub:    1,
		},
		{
			name:       "unconfirmed cancel does nothing",
			orders:     []order.Pending{newPending(1, 4)},
			id:         1,
			wantErr:    ErrConfirmationRequired,
			wantStored: 1,
			wantEvents: []string{},
		},
		{
			name:       "cancel of absent order is a no-op",
			orders:     []order.Pending{newPending(2, 4)},
			id:         1,
			confirmed:  true,
			wantStored: 1,
			wantEvents: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCompleterFixture(tt.orders...)

			err := f.completer.Cancel(context.Background(), tt.id, tt.confirmed)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Cancel() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Cancel() error = %v", err)
			}

			if len(f.sink.Records()) != 0 {
				t.Error("cancel must not record")
			}
			if got := f.store.Len(); got != tt.wantStored {
				t.Errorf("stored = %d, want %d", got, tt.wantStored)
			}
			if got := f.notifier.Types(); !equalStrings(got, tt.wantEvents) {
				t.Errorf("events = %v, want %v", got, tt.wantEvents)
			}
			if got := len(f.publisher.Messages()); got != tt.wantPub {
				t.Errorf("published = %d, want %d", got, tt.wantPub)
			}
		})
	}
}

func TestCompleterStoreError(t *testing.T) {
	f := newCompleterFixture(newPending(1, 4))
	f.store.RemoveFunc = func(ctx context.Context, id int64) (bool, error) {
		return false, errBoom
	}

	if err := f.completer.Complete(context.Background(), 1); !errors.Is(err, errBoom) {
		t.Errorf("Complete() error = %v, want store error", err)
	}
	if err := f.completer.Cancel(context.Background(), 1, true); !errors.Is(err, errBoom) {
		t.Errorf("Cancel() error = %v, want store error", err)
	}
}

// Table 4 orders two burgers and a cola. The kitchen sees it once and
// completes it; the terminated record carries the 21.97 total.
func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	bucket := pending.NewMemoryBucket()
	store := pending.NewStore(bucket)
	terminated := pending.NewTerminatedLog(bucket, pending.TerminatedKey, nil)

	clock := func() time.Time { return time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC) }
	builder := order.NewBuilder(store, order.WithClock(clock))
	if err := builder.SelectTable(4); err != nil {
		t.Fatalf("SelectTable() error = %v", err)
	}
	for _, item := range []catalog.Item{burger, burger, cola} {
		if err := builder.AddItem(item); err != nil {
			t.Fatalf("AddItem() error = %v", err)
		}
	}
	if got := builder.Total().StringFixed(2); got != "21.97" {
		t.Fatalf("draft total = %s, want 21.97", got)
	}

	id, err := builder.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if builder.Table() != 4 || len(builder.Lines()) != 0 {
		t.Errorf("after submit table = %d lines = %d", builder.Table(), len(builder.Lines()))
	}

	notifier := &MockNotifier{}
	display := NewDisplay(store, nil, WithNotifier(notifier))
	fresh, err := display.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != id {
		t.Fatalf("fresh = %v, want [%d]", pendingIDs(fresh), id)
	}
	again, _ := display.Reconcile(ctx)
	if len(again) != 0 {
		t.Errorf("order surfaced twice")
	}

	completer := NewCompleter(CompleterDeps{
		Store:    store,
		Sink:     NewLocalSink(terminated),
		Display:  display,
		Notifier: notifier,
		Now:      func() time.Time { return time.Date(2024, 6, 10, 12, 50, 0, 0, time.UTC) },
	}, nil)
	if err := completer.Complete(ctx, id); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	left, _ := store.List(ctx)
	if len(left) != 0 {
		t.Errorf("pending after complete = %v", pendingIDs(left))
	}

	records, err := terminated.ListByDate(ctx, "2024-06-10")
	if err != nil {
		t.Fatalf("ListByDate() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Table != 4 || rec.Total != "21.97" || rec.Products != "2x Hamburguesa Clásica, 1x Coca Cola" || rec.Time != "12:30:00" {
		t.Errorf("record = %+v", rec)
	}
}

func equalStrings(a, b []string) bool {
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
