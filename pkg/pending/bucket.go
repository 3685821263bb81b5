package pending

import (
	"context"
	"errors"
)

var (
	ErrRevisionMismatch = errors.New("bucket revision mismatch")
	ErrWatchUnsupported = errors.New("bucket does not support change notifications")
)

// Bucket is durable key/value storage shared by every view of the
// restaurant. A missing key reads as nil with revision 0.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, uint64, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	// Update writes value only if the key is still at revision. Revision 0
	// means the key must not exist yet.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}

// Watcher is implemented by buckets that can notify about writes. The
// channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan struct{}, error)
}

// notify performs a non-blocking send; one queued signal is enough since
// receivers reread the whole key.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
