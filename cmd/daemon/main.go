package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/reelkeeper/internal/config"
	"github.com/genricoloni/reelkeeper/internal/domain"
	"github.com/genricoloni/reelkeeper/internal/engine"
	"github.com/genricoloni/reelkeeper/internal/manager"
	"github.com/genricoloni/reelkeeper/internal/monitor"
	"github.com/genricoloni/reelkeeper/internal/policy"
	"github.com/genricoloni/reelkeeper/internal/store"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions is the application graph without the fx logger, so tests can
// swap it for fx.NopLogger
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
		fx.Annotate(store.NewConfiguredStore, fx.As(new(domain.StateStore))),
		fx.Annotate(store.NewSQLitePersister, fx.As(new(domain.StatePersister))),
		fx.Annotate(policy.NewVisibilityPolicy, fx.As(new(domain.Policy))),
		fx.Annotate(manager.NewLogReporter, fx.As(new(domain.ErrorReporter))),
		manager.NewFromConfig,
		fx.Annotate(monitor.NewMprisMonitor, fx.As(new(domain.CandidateSource))),
		engine.NewEngine,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// registerHooks ties the engine to the application lifecycle
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, eng *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Reelkeeper Daemon Started")
			return eng.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			err := eng.Stop(ctx)
			_ = logger.Sync()
			return err
		},
	})
}
