package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/fsnotify/fsnotify"
)

type fileEnvelope struct {
	Revision uint64          `json:"revision"`
	Data     json.RawMessage `json:"data"`
}

// FileBucket stores one JSON file per key in a directory. Processes on the
// same host sharing the directory see each other's writes through
// filesystem notifications. Update is atomic within one process only.
type FileBucket struct {
	dir    string
	mu     sync.Mutex
	logger aqm.Logger
}

func NewFileBucket(dir string, logger aqm.Logger) (*FileBucket, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &FileBucket{dir: dir, logger: logger}, nil
}

func (b *FileBucket) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

func (b *FileBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(key)
}

func (b *FileBucket) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, rev, err := b.readLocked(key)
	if err != nil {
		return 0, err
	}
	return b.writeLocked(key, value, rev+1)
}

func (b *FileBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, rev, err := b.readLocked(key)
	if err != nil {
		return 0, err
	}
	if rev != revision {
		return 0, fmt.Errorf("%w: key %s at %d, expected %d", ErrRevisionMismatch, key, rev, revision)
	}
	return b.writeLocked(key, value, rev+1)
}

func (b *FileBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch signals on every create, write or rename of the key's file.
func (b *FileBucket) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := w.Add(b.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", b.dir, err)
	}

	target := b.path(key)
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					notify(ch)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				b.logger.Error("bucket watch error", "key", key, "error", err)
			}
		}
	}()

	return ch, nil
}

// readLocked returns the stored value. A file that is not a valid envelope
// is returned raw at revision 0 so callers can decide how to treat it.
func (b *FileBucket) readLocked(key string) ([]byte, uint64, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", key, err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Revision == 0 {
		return data, 0, nil
	}
	return []byte(env.Data), env.Revision, nil
}

func (b *FileBucket) writeLocked(key string, value []byte, revision uint64) (uint64, error) {
	if !json.Valid(value) {
		return 0, fmt.Errorf("write %s: value is not JSON", key)
	}

	out, err := json.Marshal(fileEnvelope{Revision: revision, Data: json.RawMessage(value)})
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write %s: %w", key, err)
	}

	return revision, nil
}
