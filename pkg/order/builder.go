package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingAppender receives submitted orders.
type PendingAppender interface {
	Append(ctx context.Context, p Pending) error
}

// Draft is a read-only view of an order being built.
type Draft struct {
	Table int             `json:"table"`
	Lines []Line          `json:"lines"`
	Notes string          `json:"notes,omitempty"`
	Total decimal.Decimal `json:"total"`
}

// Builder holds the order being assembled at one order-entry terminal.
type Builder struct {
	mu    sync.Mutex
	table int
	lines []Line
	notes string

	maxTable  int
	store     PendingAppender
	ids       *IDSequence
	publisher events.Publisher
	source    string
	logger    aqm.Logger
}

type Option func(*Builder)

// WithClock sets the clock used for order ids and submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.ids = NewIDSequence(now)
	}
}

// WithIDSequence shares one id sequence between builders of a process.
func WithIDSequence(ids *IDSequence) Option {
	return func(b *Builder) {
		if ids != nil {
			b.ids = ids
		}
	}
}

func WithMaxTable(n int) Option {
	return func(b *Builder) {
		b.maxTable = n
	}
}

// WithPublisher announces submissions on the push channel.
func WithPublisher(p events.Publisher) Option {
	return func(b *Builder) {
		b.publisher = p
	}
}

func WithSource(source string) Option {
	return func(b *Builder) {
		b.source = source
	}
}

func WithLogger(logger aqm.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBuilder(store PendingAppender, opts ...Option) *Builder {
	b := &Builder{
		store:    store,
		maxTable: catalog.DefaultTables,
		logger:   aqm.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.ids == nil {
		b.ids = NewIDSequence(time.Now)
	}
	return b
}

// SelectTable sets the destination table. Lines already added stay in the
// order when switching tables.
func (b *Builder) SelectTable(n int) error {
	if n < 1 || (b.maxTable > 0 && n > b.maxTable) {
		return fmt.Errorf("%w: %d", ErrInvalidTable, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.table = n
	return nil
}

// AddItem adds one unit of item, merging into an existing line.
func (b *Builder) AddItem(item catalog.Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.table == 0 {
		return ErrNoTable
	}

	for i := range b.lines {
		if b.lines[i].Item.ID == item.ID {
			b.lines[i].Quantity++
			return nil
		}
	}

	b.lines = append(b.lines, Line{Item: item, Quantity: 1})
	return nil
}

// RemoveLine removes the line at its current position.
func (b *Builder) RemoveLine(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: %d", ErrLineIndex, index)
	}

	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

func (b *Builder) SetLineNote(index int, note string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: %d", ErrLineIndex, index)
	}

	b.lines[index].Note = note
	return nil
}

func (b *Builder) SetNotes(notes string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = notes
}

func (b *Builder) Table() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.table
}

// Lines returns a copy of the current lines in display order.
func (b *Builder) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLinesLocked()
}

func (b *Builder) Total() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Total(b.lines)
}

func (b *Builder) Draft() Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Draft{
		Table: b.table,
		Lines: b.copyLinesLocked(),
		Notes: b.notes,
		Total: Total(b.lines),
	}
}

// Submit snapshots the order into the pending store and clears lines and
// notes. The table stays selected. If the store rejects the order nothing
// is cleared.
func (b *Builder) Submit(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.table == 0 {
		return 0, ErrNoTable
	}
	if len(b.lines) == 0 {
		return 0, ErrEmptyOrder
	}

	id, at := b.ids.Next()
	pending := Pending{
		ID:            id,
		Table:         b.table,
		Lines:         b.copyLinesLocked(),
		Notes:         b.notes,
		SubmittedTime: at.Format(TimeLayout),
		SubmittedDate: at.Format(DateLayout),
		SubmittedAt:   at,
		Status:        orderstatus.Statuses.Pending.Code(),
	}

	if err := b.store.Append(ctx, pending); err != nil {
		return 0, fmt.Errorf("append pending order: %w", err)
	}

	b.lines = nil
	b.notes = ""

	b.logger.Info("order submitted", "order_id", id, "table", pending.Table, "lines", len(pending.Lines))
	b.announce(ctx, pending)

	return id, nil
}

func (b *Builder) announce(ctx context.Context, p Pending) {
	if b.publisher == nil {
		return
	}

	evt := event.PendingOrderEvent{
		EventID:    uuid.NewString(),
		EventType:  event.EventOrderSubmitted,
		OccurredAt: p.SubmittedAt.UTC(),
		OrderID:    p.ID,
		Table:      p.Table,
		Source:     b.source,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Errorf("cannot marshal submitted event: %v", err)
		return
	}

	if err := b.publisher.Publish(ctx, event.PendingOrdersTopic, data); err != nil {
		b.logger.Errorf("cannot publish submitted event: %v", err)
	}
}

func (b *Builder) copyLinesLocked() []Line {
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}
