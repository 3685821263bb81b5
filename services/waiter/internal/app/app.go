package app

import (
	"context"

	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/access"
	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/enums/role"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/appetiteclub/comanda/services/waiter/internal/entry"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
)

const (
	AppName    = "waiter"
	AppVersion = "0.1.0"
)

// App encapsulates the order-entry service application
type App struct {
	config *aqm.Config
	logger aqm.Logger
	micro  *aqm.Micro
}

func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	checker := access.FromConfig(a.config, a.logger)
	if err := access.Require(checker, role.Roles.Orders); err != nil {
		return err
	}

	menu, err := catalog.Load(pkg.StringOr(a.config, "catalog.file", ""))
	if err != nil {
		return err
	}
	tables := pkg.IntOr(a.config, "catalog.tables", catalog.DefaultTables)

	settings := pkg.LoadSettings(a.config)

	bucket, closeBucket, err := pkg.OpenBucket(ctx, settings, a.logger)
	if err != nil {
		return err
	}
	store := pending.NewStore(bucket, settings.StoreOptions(a.logger)...)

	push, err := pkg.OpenPush(ctx, settings, AppName, a.logger)
	if err != nil {
		return err
	}

	ids := order.NewIDSequence(nil)
	newBuilder := func(terminalID string) *order.Builder {
		return order.NewBuilder(store,
			order.WithIDSequence(ids),
			order.WithMaxTable(tables),
			order.WithPublisher(push.Publisher),
			order.WithSource(AppName+"-"+terminalID),
			order.WithLogger(a.logger.With("terminal_id", terminalID)),
		)
	}

	terminals := entry.NewTerminals(newBuilder, a.logger,
		entry.WithTTL(pkg.DurationOr(a.config, "terminal.ttl", entry.DefaultTerminalTTL)),
	)

	handler := entry.NewHandler(entry.HandlerDeps{
		Catalog:   menu,
		Terminals: terminals,
		Tables:    tables,
		Access:    checker,
	}, a.config, a.logger)

	// Setup middleware
	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(
			terminals,
			aqm.LifecycleHooks{OnStop: push.Close},
			aqm.LifecycleHooks{OnStop: closeBucket},
		),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	a.logger.Info("waiter initialized", "items", menu.Len(), "tables", tables, "store", settings.StoreBackend)
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
