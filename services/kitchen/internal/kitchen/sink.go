package kitchen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

// CompletionSink records a terminated order. A nil error is success.
type CompletionSink interface {
	Record(ctx context.Context, p order.Pending, completedAt time.Time) error
}

// TerminatedReader lists terminated records for a date (YYYY-MM-DD).
type TerminatedReader interface {
	ListByDate(ctx context.Context, date string) ([]order.Terminated, error)
}

// LocalLog is the local terminated record log.
type LocalLog interface {
	Append(ctx context.Context, rec order.Terminated) error
	ListByDate(ctx context.Context, date string) ([]order.Terminated, error)
}

// LocalSink records terminated orders only in the local log.
type LocalSink struct {
	log LocalLog
}

func NewLocalSink(log LocalLog) *LocalSink {
	return &LocalSink{log: log}
}

func (s *LocalSink) Record(ctx context.Context, p order.Pending, completedAt time.Time) error {
	return s.log.Append(ctx, order.NewTerminated(p, completedAt))
}

func (s *LocalSink) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	return s.log.ListByDate(ctx, date)
}

// FallbackSink tries the primary sink and, when it fails, keeps the record
// in the local log and reports success. Only a failure of both is an
// error.
type FallbackSink struct {
	primary CompletionSink
	local   LocalLog
	logger  aqm.Logger
}

func NewFallbackSink(primary CompletionSink, local LocalLog, logger aqm.Logger) *FallbackSink {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &FallbackSink{primary: primary, local: local, logger: logger}
}

func (s *FallbackSink) Record(ctx context.Context, p order.Pending, completedAt time.Time) error {
	primaryErr := s.primary.Record(ctx, p, completedAt)
	if primaryErr == nil {
		return nil
	}

	s.logger.Error("completion sink unavailable, keeping record locally", "order_id", p.ID, "error", primaryErr)

	if err := s.local.Append(ctx, order.NewTerminated(p, completedAt)); err != nil {
		return errors.Join(
			fmt.Errorf("primary sink: %w", primaryErr),
			fmt.Errorf("local log: %w", err),
		)
	}
	return nil
}

// ListByDate reads from the primary sink when it can list records, and
// from the local log otherwise or when the primary fails.
func (s *FallbackSink) ListByDate(ctx context.Context, date string) ([]order.Terminated, error) {
	if reader, ok := s.primary.(TerminatedReader); ok {
		records, err := reader.ListByDate(ctx, date)
		if err == nil {
			return records, nil
		}
		s.logger.Error("cannot list terminated records from sink, using local log", "date", date, "error", err)
	}
	return s.local.ListByDate(ctx, date)
}

// Start starts the primary sink when it has a lifecycle. A primary that
// cannot start is logged and left to fail each Record.
func (s *FallbackSink) Start(ctx context.Context) error {
	if l, ok := s.primary.(interface{ Start(context.Context) error }); ok {
		if err := l.Start(ctx); err != nil {
			s.logger.Error("completion sink failed to start, records will be kept locally", "error", err)
		}
	}
	return nil
}

func (s *FallbackSink) Stop(ctx context.Context) error {
	if l, ok := s.primary.(interface{ Stop(context.Context) error }); ok {
		return l.Stop(ctx)
	}
	return nil
}
