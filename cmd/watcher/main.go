// The watcher binary polls a changelog URL on a cron schedule and
// announces new releases to Telegram, keeping its last-seen version in a
// pluggable key-value store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"relwatch/internal/changelog"
	"relwatch/internal/infra/fetcher"
	"relwatch/internal/infra/kv"
	"relwatch/internal/infra/notifier"
	"relwatch/internal/infra/worker"
	"relwatch/internal/observability/logging"
	"relwatch/internal/resilience/circuitbreaker"
	"relwatch/internal/statestore"
	"relwatch/internal/usecase/check"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg, err := worker.LoadFromEnv()
	if err != nil {
		logger.Error("configuration invalid", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.String("changelog_url", cfg.ChangelogURL),
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.String("state_backend", cfg.StateBackend),
		slog.Bool("telegram_enabled", cfg.Telegram.Enabled),
		slog.Int("health_port", cfg.HealthPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("failed to open state backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Error("failed to close state backend", slog.Any("error", err))
		}
	}()

	fetchBreaker := circuitbreaker.New(circuitbreaker.FetchConfig())
	notifyBreaker := circuitbreaker.New(circuitbreaker.NotifyConfig())
	storeBreaker := circuitbreaker.New(circuitbreaker.StoreConfig())

	svc := check.NewService(
		fetcher.New(fetcher.Config{
			URL:         cfg.ChangelogURL,
			Timeout:     cfg.FetchTimeout,
			MaxBodySize: cfg.MaxBodySize,
		}),
		changelog.NewParser(changelog.Config{MinNotes: cfg.MinNotes}),
		statestore.New(backend),
		buildNotifier(logger, cfg, notifyBreaker),
		fetchBreaker,
		storeBreaker,
		logger,
	)

	runCheck := func(ctx context.Context) (*check.Result, error) {
		runCtx, cancel := context.WithTimeout(ctx, cfg.CheckTimeout)
		defer cancel()
		return svc.Run(runCtx)
	}

	breakers := []*circuitbreaker.CircuitBreaker{fetchBreaker, notifyBreaker, storeBreaker}
	healthServer := worker.NewHealthServer(
		fmt.Sprintf(":%d", cfg.HealthPort), logger, breakers, runCheck)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		scheduler := cron.New(cron.WithLocation(loc))
		_, err := scheduler.AddFunc(cfg.CronSchedule, func() {
			scheduledCheck(ctx, logger, runCheck)
		})
		if err != nil {
			return fmt.Errorf("add cron job: %w", err)
		}
		scheduler.Start()
		healthServer.SetReady(true)
		logger.Info("watcher started",
			slog.String("schedule", cfg.CronSchedule),
			slog.String("timezone", cfg.Timezone))

		<-ctx.Done()
		healthServer.SetReady(false)
		stopCtx := scheduler.Stop()
		// Let an in-flight check finish before exiting.
		<-stopCtx.Done()
		logger.Info("scheduler stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("watcher exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("watcher stopped")
}

// scheduledCheck runs one check from the cron trigger. Failures are
// logged, not fatal; the next tick tries again.
func scheduledCheck(ctx context.Context, logger *slog.Logger, run worker.RunFunc) {
	logger.Info("scheduled check started")
	result, err := run(ctx)
	if err != nil {
		logger.Error("scheduled check failed", slog.Any("error", err))
		return
	}
	logger.Info("scheduled check completed",
		slog.String("outcome", string(result.Outcome)),
		slog.String("latest", result.LatestVersion),
		slog.Duration("duration", result.Duration))
}

// openBackend opens the configured kv store and returns it with a close
// function.
func openBackend(ctx context.Context, cfg *worker.Config) (kv.Store, func() error, error) {
	switch cfg.StateBackend {
	case worker.BackendSQLite:
		store, err := kv.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case worker.BackendPostgres:
		store, err := kv.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return kv.NewMemoryStore(), func() error { return nil }, nil
	}
}

// buildNotifier returns the Telegram notifier, or the no-op one when the
// channel is disabled.
func buildNotifier(logger *slog.Logger, cfg *worker.Config, breaker *circuitbreaker.CircuitBreaker) notifier.Notifier {
	if !cfg.Telegram.Enabled {
		logger.Info("telegram channel disabled, using noop notifier")
		return notifier.NewNoop()
	}
	return notifier.NewTelegramNotifier(notifier.TelegramConfig{
		Enabled:    true,
		BotToken:   cfg.Telegram.BotToken,
		ChatID:     cfg.Telegram.ChatID,
		ThreadID:   cfg.Telegram.ThreadID,
		APIBaseURL: cfg.Telegram.APIBaseURL,
		MaxNotes:   cfg.Telegram.MaxNotes,
	}, breaker)
}
