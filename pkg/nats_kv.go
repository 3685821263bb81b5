package pkg

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/aquamarinepk/aqm"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSKVBucket keeps pending state in a JetStream key/value bucket so views
// on different hosts share it.
type NATSKVBucket struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	logger aqm.Logger
}

func NewNATSKVBucket(ctx context.Context, url, bucket string, logger aqm.Logger) (*NATSKVBucket, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if bucket == "" {
		bucket = "COMANDA"
	}

	conn, err := connectNATS(url, "comanda-kv")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update kv bucket %s: %w", bucket, err)
	}

	return &NATSKVBucket{conn: conn, kv: kv, logger: logger}, nil
}

func (b *NATSKVBucket) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry.Value(), entry.Revision(), nil
}

func (b *NATSKVBucket) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := b.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("kv put %s: %w", key, err)
	}
	return rev, nil
}

func (b *NATSKVBucket) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var (
		rev uint64
		err error
	)
	if revision == 0 {
		rev, err = b.kv.Create(ctx, key, value)
	} else {
		rev, err = b.kv.Update(ctx, key, value, revision)
	}
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) || isWrongSequence(err) {
			return 0, fmt.Errorf("%w: %v", pending.ErrRevisionMismatch, err)
		}
		return 0, fmt.Errorf("kv update %s: %w", key, err)
	}
	return rev, nil
}

// Watch signals on every update of key made after the call.
func (b *NATSKVBucket) Watch(ctx context.Context, key string) (<-chan struct{}, error) {
	w, err := b.kv.Watch(ctx, key, jetstream.UpdatesOnly())
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", key, err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer w.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func (b *NATSKVBucket) Close() error {
	b.conn.Close()
	return nil
}

// isWrongSequence matches the API error returned when an update names a
// stale revision.
func isWrongSequence(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
