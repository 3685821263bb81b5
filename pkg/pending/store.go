package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

const (
	PendingKey    = "pedidos_pendientes"
	TerminatedKey = "pedidos_terminados"

	defaultMaxAttempts = 5
)

var ErrConflict = errors.New("pending collection changed concurrently")

// Snapshot is one read of the pending collection.
type Snapshot struct {
	Orders   []order.Pending
	Revision uint64
}

// Find returns the order with id.
func (s Snapshot) Find(id int64) (order.Pending, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return order.Pending{}, false
}

// Store is the pending collection kept as a single value in a Bucket. Every
// mutation reads the whole collection, changes it and writes it back.
//
// By default writes are blind: two handles that load, mutate and save in
// an interleaved way lose one of the updates. WithOptimisticWrites makes
// Save compare revisions and Append/Remove retry on conflict.
type Store struct {
	bucket      Bucket
	key         string
	optimistic  bool
	maxAttempts int
	logger      aqm.Logger
}

type StoreOption func(*Store)

func WithKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithOptimisticWrites() StoreOption {
	return func(s *Store) {
		s.optimistic = true
	}
}

func WithMaxAttempts(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithStoreLogger(logger aqm.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(bucket Bucket, opts ...StoreOption) *Store {
	s := &Store{
		bucket:      bucket,
		key:         PendingKey,
		maxAttempts: defaultMaxAttempts,
		logger:      aqm.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key() string {
	return s.key
}

// Load reads the collection. Unreadable state is treated as empty and
// unreadable entries are dropped; neither is an error.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	data, rev, err := s.bucket.Get(ctx, s.key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", s.key, err)
	}
	return Snapshot{Orders: s.decode(data), Revision: rev}, nil
}

// Save writes the whole collection.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	orders := snap.Orders
	if orders == nil {
		orders = []order.Pending{}
	}

	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}

	if !s.optimistic {
		if _, err := s.bucket.Put(ctx, s.key, data); err != nil {
			return fmt.Errorf("write %s: %w", s.key, err)
		}
		return nil
	}

	if _, err := s.bucket.Update(ctx, s.key, data, snap.Revision); err != nil {
		if errors.Is(err, ErrRevisionMismatch) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// List returns pending orders sorted by ascending id.
func (s *Store) List(ctx context.Context) ([]order.Pending, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	orders := snap.Orders
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (s *Store) Get(ctx context.Context, id int64) (order.Pending, bool, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return order.Pending{}, false, err
	}
	p, ok := snap.Find(id)
	return p, ok, nil
}

// Append adds an order. An id already present is left as is.
func (s *Store) Append(ctx context.Context, p order.Pending) error {
	return s.mutate(ctx, func(orders []order.Pending) ([]order.Pending, bool) {
		for _, o := range orders {
			if o.ID == p.ID {
				return orders, false
			}
		}
		return append(orders, p), true
	})
}

// Remove deletes the order with id. Removing an absent id is a no-op and
// does not write.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := s.mutate(ctx, func(orders []order.Pending) ([]order.Pending, bool) {
		removed = false
		for i, o := range orders {
			if o.ID == id {
				removed = true
				return append(orders[:i:i], orders[i+1:]...), true
			}
		}
		return orders, false
	})
	return removed, err
}

// Clear drops every pending order. It always writes, so unreadable state
// is replaced by an empty collection.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(orders []order.Pending) ([]order.Pending, bool) {
		return []order.Pending{}, true
	})
}

// Watch forwards change notifications of the underlying bucket.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, ok := s.bucket.(Watcher)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return w.Watch(ctx, s.key)
}

func (s *Store) mutate(ctx context.Context, fn func([]order.Pending) ([]order.Pending, bool)) error {
	attempts := 1
	if s.optimistic {
		attempts = s.maxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		var snap Snapshot
		snap, err = s.Load(ctx)
		if err != nil {
			return err
		}

		next, changed := fn(snap.Orders)
		if !changed {
			return nil
		}

		err = s.Save(ctx, Snapshot{Orders: next, Revision: snap.Revision})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		s.logger.Debug("pending collection conflict, retrying", "attempt", i+1)
	}
	return err
}

func (s *Store) decode(data []byte) []order.Pending {
	if len(data) == 0 {
		return []order.Pending{}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Error("discarding unreadable pending collection", "key", s.key, "error", err)
		return []order.Pending{}
	}

	orders := make([]order.Pending, 0, len(raw))
	for i, entry := range raw {
		var p order.Pending
		if err := json.Unmarshal(entry, &p); err != nil {
			s.logger.Error("discarding unreadable pending order", "key", s.key, "index", i, "error", err)
			continue
		}
		if err := p.Validate(); err != nil {
			s.logger.Error("discarding invalid pending order", "key", s.key, "index", i, "error", err)
			continue
		}
		orders = append(orders, p)
	}
	return orders
}
