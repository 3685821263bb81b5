package app

import (
	"context"
	"fmt"

	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/access"
	"github.com/appetiteclub/comanda/pkg/enums/role"
	"github.com/appetiteclub/comanda/pkg/pending"
	"github.com/appetiteclub/comanda/services/kitchen/internal/events"
	"github.com/appetiteclub/comanda/services/kitchen/internal/kitchen"
	"github.com/appetiteclub/comanda/services/kitchen/internal/mongo"
	"github.com/appetiteclub/comanda/services/kitchen/internal/postgres"
	"github.com/appetiteclub/comanda/services/kitchen/internal/sheets"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/google/uuid"
)

const (
	AppName    = "kitchen"
	AppVersion = "0.1.0"
)

const (
	SinkSheets   = "sheets"
	SinkMongo    = "mongo"
	SinkPostgres = "postgres"
	SinkLocal    = "local"
)

// App encapsulates the kitchen service application
type App struct {
	config *aqm.Config
	logger aqm.Logger
	micro  *aqm.Micro
}

// New creates a new kitchen service application
func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	checker := access.FromConfig(a.config, a.logger)
	if err := access.Require(checker, role.Roles.Kitchen); err != nil {
		return err
	}

	settings := pkg.LoadSettings(a.config)
	instance := AppName + "-" + uuid.NewString()[:8]

	bucket, closeBucket, err := pkg.OpenBucket(ctx, settings, a.logger)
	if err != nil {
		return err
	}
	store := pending.NewStore(bucket, settings.StoreOptions(a.logger)...)
	terminatedLog := pending.NewTerminatedLog(bucket, settings.TerminatedKey, a.logger)

	sink, err := a.newSink(terminatedLog)
	if err != nil {
		return err
	}

	consumer := pkg.StringOr(a.config, "push.consumer", instance)
	push, err := pkg.OpenPush(ctx, settings, consumer, a.logger)
	if err != nil {
		return err
	}

	broadcaster := kitchen.NewBroadcaster(a.logger)

	displayOpts := []kitchen.DisplayOption{
		kitchen.WithSyncInterval(pkg.DurationOr(a.config, "sync.interval", kitchen.DefaultSyncInterval)),
		kitchen.WithNotifier(broadcaster),
	}

	var pendingSubscriber *events.PendingOrderSubscriber
	if push.Subscriber != nil {
		pendingSubscriber = events.NewPendingOrderSubscriber(push.Subscriber, nil, instance, a.logger)
		displayOpts = append(displayOpts, kitchen.WithTrigger(pendingSubscriber.Signals()))
	}
	display := kitchen.NewDisplay(store, a.logger, displayOpts...)
	if pendingSubscriber != nil {
		pendingSubscriber.SetWithdrawer(display)
	}

	completer := kitchen.NewCompleter(kitchen.CompleterDeps{
		Store:     store,
		Sink:      sink,
		Display:   display,
		Publisher: push.Publisher,
		Notifier:  broadcaster,
		Source:    instance,
	}, a.logger)

	var terminated kitchen.TerminatedReader
	if r, ok := sink.(kitchen.TerminatedReader); ok {
		terminated = r
	}

	handler := kitchen.NewHandler(kitchen.HandlerDeps{
		Display:     display,
		Completer:   completer,
		Broadcaster: broadcaster,
		Terminated:  terminated,
		Access:      checker,
	}, a.config, a.logger)

	// Setup middleware
	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{}
	if l, ok := sink.(interface {
		Start(context.Context) error
		Stop(context.Context) error
	}); ok {
		lifecycles = append(lifecycles, l)
	}
	if pendingSubscriber != nil {
		lifecycles = append(lifecycles, pendingSubscriber)
	}
	lifecycles = append(lifecycles,
		display,
		aqm.LifecycleHooks{OnStop: push.Close},
		aqm.LifecycleHooks{OnStop: closeBucket},
	)

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	a.logger.Info("kitchen initialized", "instance", instance, "store", settings.StoreBackend, "push", settings.PushTransport)
	return nil
}

// newSink builds the completion sink named by sink.kind. Remote sinks fall
// back to the local terminated log.
func (a *App) newSink(local *pending.TerminatedLog) (kitchen.CompletionSink, error) {
	kind := pkg.StringOr(a.config, "sink.kind", SinkLocal)

	var primary kitchen.CompletionSink
	switch kind {
	case SinkLocal:
		return kitchen.NewLocalSink(local), nil
	case SinkSheets:
		primary = sheets.NewSink(sheets.LoadSettings(a.config), nil, a.logger)
	case SinkMongo:
		primary = mongo.NewTerminatedRepo(a.config, a.logger)
	case SinkPostgres:
		primary = postgres.NewSink(pkg.StringOr(a.config, "db.postgres.url", postgres.DefaultURL), a.logger)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", kind)
	}

	a.logger.Info("completion sink configured", "kind", kind)
	return kitchen.NewFallbackSink(primary, local, a.logger), nil
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

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	// Lifecycle cleanup is handled by aqm.Micro
	return nil
}
