package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/comanda/cmd/utils/internal/seeding"
	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

// SeedDemo submits the demo orders to the pending collection. It skips when
// orders are already pending unless seed.force is set.
func SeedDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo seeding process...")

	st, err := openStores(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(ctx)

	current, err := st.Pending.List(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(current) > 0 && !pkg.BoolOr(config, "seed.force", false) {
		logger.Info("Pending orders present, skipping demo seed", "count", len(current))
		return nil
	}

	menu, err := catalog.Load(pkg.StringOr(config, "catalog.file", ""))
	if err != nil {
		return err
	}

	ids, err := seeding.SeedOrders(ctx, st.Pending, menu,
		order.WithSource("demo-seed"),
		order.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}

	logger.Info("Demo orders submitted", "count", len(ids))
	return nil
}
