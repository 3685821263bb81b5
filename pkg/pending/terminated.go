package pending

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

// TerminatedLog is the local append-only record of completed orders, used
// when the remote completion log cannot be reached.
type TerminatedLog struct {
	bucket Bucket
	key    string
	logger aqm.Logger
}

func NewTerminatedLog(bucket Bucket, key string, logger aqm.Logger) *TerminatedLog {
	if key == "" {
		key = TerminatedKey
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &TerminatedLog{bucket: bucket, key: key, logger: logger}
}

func (l *TerminatedLog) Append(ctx context.Context, rec order.Terminated) error {
	records, err := l.List(ctx)
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.key, err)
	}
	if _, err := l.bucket.Put(ctx, l.key, data); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}

// List returns records in insertion order.
func (l *TerminatedLog) List(ctx context.Context) ([]order.Terminated, error) {
	data, _, err := l.bucket.Get(ctx, l.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.key, err)
	}
	if len(data) == 0 {
		return []order.Terminated{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		l.logger.Error("discarding unreadable terminated log", "key", l.key, "error", err)
		return []order.Terminated{}, nil
	}

	records := make([]order.Terminated, 0, len(raw))
	for i, entry := range raw {
		var rec order.Terminated
		if err := json.Unmarshal(entry, &rec); err != nil {
			l.logger.Error("discarding unreadable terminated record", "key", l.key, "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListByDate returns records whose submission date is date (YYYY-MM-DD).
func (l *TerminatedLog) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	records, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]order.Terminated, 0, len(records))
	for _, rec := range records {
		if rec.Date == date {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *TerminatedLog) Clear(ctx context.Context) error {
	if _, err := l.bucket.Put(ctx, l.key, []byte("[]")); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}
