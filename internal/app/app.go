package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/orderwatch/internal/config"
	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and
// the dependency bundle built by Wire, and is responsible for tearing
// everything down on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires every dependency, subscribes to the watcher with a subscriber
// that fans a delivered state out to every enabled notify sink, starts the
// snapshot archiver if configured, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting order-validity watcher")

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	errCh := make(chan error, 1)
	subscriber := a.fanOutSubscriber(deps, errCh)

	if err := deps.Watcher.Subscribe(subscriber); err != nil {
		return fmt.Errorf("app: subscribe: %w", err)
	}
	a.closers = append(a.closers, func() { _ = deps.Watcher.Unsubscribe() })

	if deps.SnapshotWriter != nil {
		snapshotCtx, cancel := context.WithCancel(ctx)
		a.closers = append(a.closers, cancel)
		interval := a.cfg.S3.SnapshotInterval.Duration
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		go deps.SnapshotWriter.Run(snapshotCtx, interval)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: watcher subscription failed: %w", err)
	}
}

// fanOutSubscriber returns a domain.Subscriber that logs every callback,
// forwards a terminal error onto errCh, and otherwise broadcasts a delivered
// state to every enabled notify sink.
func (a *App) fanOutSubscriber(deps *Dependencies, errCh chan<- error) domain.Subscriber {
	return func(err error, state *domain.OrderState) {
		if err != nil {
			a.logger.Error("watcher subscription terminated", slog.String("error", err.Error()))
			select {
			case errCh <- err:
			default:
			}
			return
		}
		if state == nil {
			return
		}

		a.logger.Info("order state changed",
			slog.String("order_hash", state.OrderHash.Hex()),
			slog.Bool("valid", state.Valid),
			slog.String("reason", string(state.Reason)),
		)

		ctx := context.Background()
		var g errgroup.Group
		if deps.RedisPublisher != nil {
			g.Go(func() error {
				if err := deps.RedisPublisher.Publish(ctx, *state); err != nil {
					a.logger.Error("redis publish failed", slog.String("error", err.Error()))
				}
				return nil
			})
		}
		if deps.AuditStore != nil {
			g.Go(func() error {
				if err := deps.AuditStore.Record(ctx, *state); err != nil {
					a.logger.Error("audit record failed", slog.String("error", err.Error()))
				}
				return nil
			})
		}
		// Sinks are independent; either failing must not block the other, so
		// errors are logged inline and Wait's return value is unused.
		_ = g.Wait()
	}
}

// Close tears down every resource Run acquired, in reverse order. Safe to
// call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
