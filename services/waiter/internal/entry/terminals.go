package entry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// DefaultTerminalTTL is how long an untouched terminal keeps its draft.
const DefaultTerminalTTL = 12 * time.Hour

var ErrUnknownTerminal = errors.New("unknown terminal")

type terminal struct {
	builder  *order.Builder
	lastSeen time.Time
}

// Terminals keeps one order Builder per order-entry terminal. Drafts live
// only in memory; a terminal that goes quiet for longer than the TTL is
// dropped together with its draft.
type Terminals struct {
	mu        sync.Mutex
	terminals map[string]*terminal

	newBuilder func(id string) *order.Builder
	ttl        time.Duration
	now        func() time.Time
	logger     aqm.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

type TerminalsOption func(*Terminals)

func WithTTL(d time.Duration) TerminalsOption {
	return func(t *Terminals) {
		if d > 0 {
			t.ttl = d
		}
	}
}

func WithNow(now func() time.Time) TerminalsOption {
	return func(t *Terminals) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTerminals builds a registry. newBuilder is called once per terminal id.
func NewTerminals(newBuilder func(id string) *order.Builder, logger aqm.Logger, opts ...TerminalsOption) *Terminals {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	t := &Terminals{
		terminals:  make(map[string]*terminal),
		newBuilder: newBuilder,
		ttl:        DefaultTerminalTTL,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open registers a new terminal and returns its id.
func (t *Terminals) Open() string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.terminals[id] = &terminal{builder: t.newBuilder(id), lastSeen: t.now()}

	t.logger.Info("terminal opened", "terminal_id", id)
	return id
}

// Builder returns the builder of a registered terminal.
func (t *Terminals) Builder(id string) (*order.Builder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	term, ok := t.terminals[id]
	if !ok {
		return nil, ErrUnknownTerminal
	}
	term.lastSeen = t.now()
	return term.builder, nil
}

// Close discards a terminal and its draft.
func (t *Terminals) Close(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.terminals[id]; !ok {
		return false
	}
	delete(t.terminals, id)
	t.logger.Info("terminal closed", "terminal_id", id)
	return true
}

func (t *Terminals) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.terminals)
}

// Sweep drops terminals idle for longer than the TTL and returns how many
// were dropped.
func (t *Terminals) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	dropped := 0
	for id, term := range t.terminals {
		if term.lastSeen.Before(cutoff) {
			delete(t.terminals, id)
			dropped++
		}
	}
	if dropped > 0 {
		t.logger.Info("idle terminals dropped", "count", dropped)
	}
	return dropped
}

// Start sweeps idle terminals in the background.
func (t *Terminals) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	interval := t.ttl / 4
	if interval <= 0 {
		interval = t.ttl
	}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
	return nil
}

func (t *Terminals) Stop(ctx context.Context) error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
