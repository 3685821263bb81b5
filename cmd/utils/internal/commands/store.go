package commands

import (
	"context"

	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/aquamarinepk/aqm"
)

// stores opens the configured bucket and returns the pending store and
// terminated log that live in it.
type stores struct {
	Pending    *pending.Store
	Terminated *pending.TerminatedLog
	close      func(context.Context) error
}

func openStores(ctx context.Context, config *aqm.Config, logger aqm.Logger) (*stores, error) {
	settings := pkg.LoadSettings(config)
	bucket, closeBucket, err := pkg.OpenBucket(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	return &stores{
		Pending:    pending.NewStore(bucket, settings.StoreOptions(logger)...),
		Terminated: pending.NewTerminatedLog(bucket, settings.TerminatedKey, logger),
		close:      closeBucket,
	}, nil
}

func (s *stores) Close(ctx context.Context) {
	_ = s.close(ctx)
}
