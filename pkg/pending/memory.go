package pending

import (
	"context"
	"fmt"
	"sync"
)

type memoryEntry struct {
	value    []byte
	revision uint64
}

// MemoryBucket keeps keys in process memory. Every Store built on the same
// MemoryBucket sees the same data, which stands in for several views
// sharing one storage.
type MemoryBucket struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	watchers map[string]map[chan struct{}]struct{}
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		entries:  make(map[string]memoryEntry),
		watchers: make(map[string]map[chan struct{}]struct{}),
	}
}

func (b *MemoryBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[key]
	if !ok {
		return nil, 0, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, e.revision, nil
}

func (b *MemoryBucket) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeLocked(key, value), nil
}

func (b *MemoryBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.entries[key].revision
	if current != revision {
		return 0, fmt.Errorf("%w: key %s at %d, expected %d", ErrRevisionMismatch, key, current, revision)
	}
	return b.writeLocked(key, value), nil
}

// Set writes raw bytes, bypassing any encoding. Useful to seed malformed
// state.
func (b *MemoryBucket) Set(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeLocked(key, value)
}

func (b *MemoryBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	for ch := range b.watchers[key] {
		notify(ch)
	}
	return nil
}

func (b *MemoryBucket) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.watchers[key] == nil {
		b.watchers[key] = make(map[chan struct{}]struct{})
	}
	b.watchers[key][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers[key], ch)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (b *MemoryBucket) writeLocked(key string, value []byte) uint64 {
	stored := make([]byte, len(value))
	copy(stored, value)

	rev := b.entries[key].revision + 1
	b.entries[key] = memoryEntry{value: stored, revision: rev}

	for ch := range b.watchers[key] {
		notify(ch)
	}
	return rev
}
