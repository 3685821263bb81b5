package commands

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// ClearDemo empties the pending collection and the local terminated log.
func ClearDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo data cleanup...")

	st, err := openStores(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(ctx)

	if err := st.Pending.Clear(ctx); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	logger.Info("Cleared pending orders", "key", st.Pending.Key())

	if err := st.Terminated.Clear(ctx); err != nil {
		return fmt.Errorf("clear terminated: %w", err)
	}
	logger.Info("Cleared local terminated log")

	return nil
}
