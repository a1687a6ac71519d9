// Package app turns a validated config.Config into wired services and owns
// their lifetimes.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/listingwatch/internal/capture"
	"github.com/JakeFAU/listingwatch/internal/clock/system"
	"github.com/JakeFAU/listingwatch/internal/config"
	"github.com/JakeFAU/listingwatch/internal/extract"
	"github.com/JakeFAU/listingwatch/internal/extract/gemini"
	"github.com/JakeFAU/listingwatch/internal/history"
	"github.com/JakeFAU/listingwatch/internal/history/file"
	"github.com/JakeFAU/listingwatch/internal/history/gcs"
	"github.com/JakeFAU/listingwatch/internal/history/memory"
	"github.com/JakeFAU/listingwatch/internal/history/postgres"
	"github.com/JakeFAU/listingwatch/internal/history/sqlite"
	"github.com/JakeFAU/listingwatch/internal/metrics"
	"github.com/JakeFAU/listingwatch/internal/monitor"
	"github.com/JakeFAU/listingwatch/internal/notify"
	"github.com/JakeFAU/listingwatch/internal/notify/pubsub"
	"github.com/JakeFAU/listingwatch/internal/notify/pushplus"
)

// ErrNoChannel is returned by TestPush when no notification channel is set up.
var ErrNoChannel = errors.New("no notification channel configured")

// App holds the long-lived services of one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	senders []notify.Sender
	metrics *metrics.Recorder

	// Overrides used by tests in place of the real adapters.
	capturer capture.Capturer
	backend  extract.Backend
	clock    monitor.Clock

	closers []func() error
}

// Option customizes App construction.
type Option func(*App)

// WithCapturer replaces the chromedp capturer.
func WithCapturer(c capture.Capturer) Option {
	return func(a *App) { a.capturer = c }
}

// WithBackend replaces the Gemini backend.
func WithBackend(b extract.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithClock replaces the wall clock.
func WithClock(c monitor.Clock) Option {
	return func(a *App) { a.clock = c }
}

// New builds the notification channels. Everything else is built lazily by
// Run so that --test-push needs no browser, model or history.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		clock:   system.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if token := cfg.Notify.PushPlus.Token; token != "" {
		sender, err := pushplus.New(pushplus.Config{
			Token:         token,
			Endpoint:      cfg.Notify.PushPlus.Endpoint,
			Timeout:       cfg.Notify.PushPlus.Timeout,
			RatePerSecond: cfg.Notify.PushPlus.RatePerSecond,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("pushplus init failed: %w", err)
		}
		a.senders = append(a.senders, sender)
	}

	if cfg.Notify.PubSub.Enabled() {
		sender, err := pubsub.New(ctx, pubsub.Config{
			ProjectID: cfg.Notify.PubSub.ProjectID,
			TopicID:   cfg.Notify.PubSub.Topic,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.senders = append(a.senders, sender)
		a.closers = append(a.closers, sender.Close)
	}

	names := make([]string, 0, len(a.senders))
	for _, s := range a.senders {
		names = append(names, s.Name())
	}
	logger.Info("notification channels ready", zap.Strings("channels", names))
	return a, nil
}

// TestPush sends a fixed message through every channel and reports failures,
// unlike the best-effort notifier used during runs.
func (a *App) TestPush(ctx context.Context) error {
	if len(a.senders) == 0 {
		return ErrNoChannel
	}
	if err := notify.Multi(a.senders...).Send(ctx, notify.TestMessage()); err != nil {
		return fmt.Errorf("test push: %w", err)
	}
	a.logger.Info("test notification sent")
	return nil
}

// Run performs one monitoring pass. It returns monitor.ErrOutsideWindow when
// gated.
func (a *App) Run(ctx context.Context, force bool) (monitor.Summary, error) {
	if err := a.cfg.ValidateForRun(); err != nil {
		return monitor.Summary{}, err
	}
	win, err := a.cfg.OperatingWindow()
	if err != nil {
		return monitor.Summary{}, err
	}
	// Gate before opening any backend.
	if now := a.clock.Now(); !force && !win.ShouldRun(now) {
		a.logger.Info("skipping run", zap.String("reason", win.Explain(now)))
		return monitor.Summary{}, monitor.ErrOutsideWindow
	}

	store, err := OpenHistory(ctx, a.cfg.History, a.logger)
	if err != nil {
		return monitor.Summary{}, err
	}
	a.closers = append(a.closers, store.Close)

	extractor, err := a.newExtractor(ctx)
	if err != nil {
		return monitor.Summary{}, err
	}

	capturer, err := a.newCapturer()
	if err != nil {
		return monitor.Summary{}, err
	}

	m, err := monitor.New(monitor.Deps{
		Targets:   a.cfg.Targets,
		Window:    win,
		Clock:     a.clock,
		Capturer:  capturer,
		Extractor: extractor,
		Store:     store,
		Notifier:  notify.New(a.logger.Named("notify"), a.senders...),
		Metrics:   a.metrics,
		Logger:    a.logger,
	}, monitor.Options{Force: force, NotifyTitle: a.cfg.Notify.Title})
	if err != nil {
		return monitor.Summary{}, err
	}

	summary, runErr := m.Run(ctx)
	if runErr == nil {
		if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
			a.logger.Warn("metrics push failed", zap.Error(err))
		}
	}
	return summary, runErr
}

// Metrics exposes the recorder of this process.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

func (a *App) newExtractor(ctx context.Context) (*extract.Service, error) {
	backend := a.backend
	if backend == nil {
		b, err := gemini.New(ctx, gemini.Config{
			APIKey:     a.cfg.Extraction.APIKey,
			APIVersion: a.cfg.Extraction.APIVersion,
			BaseURL:    a.cfg.Extraction.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini init failed: %w", err)
		}
		backend = b
	}
	return extract.NewService(backend, extract.Config{
		Rules:         a.cfg.Extraction.Rules,
		PrimaryModel:  a.cfg.Extraction.PrimaryModel,
		FallbackModel: a.cfg.Extraction.FallbackModel,
		Timeout:       a.cfg.Extraction.Timeout,
		Debug:         a.cfg.Extraction.Debug,
	}, a.logger.Named("extract"))
}

func (a *App) newCapturer() (capture.Capturer, error) {
	if a.capturer != nil {
		return a.capturer, nil
	}
	c, err := capture.NewChromedp(capture.Config{
		Width:             a.cfg.Capture.Width,
		Height:            a.cfg.Capture.Height,
		SettleDelay:       a.cfg.Capture.SettleDelay,
		NavigationTimeout: a.cfg.Capture.NavigationTimeout,
		UserAgent:         a.cfg.Capture.UserAgent,
		ExecPath:          a.cfg.Capture.ExecPath,
	}, a.logger.Named("capture"))
	if err != nil {
		return nil, fmt.Errorf("capture init failed: %w", err)
	}
	a.closers = append(a.closers, func() error {
		c.Close()
		return nil
	})
	return c, nil
}

// OpenHistory opens the configured history backend.
func OpenHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (history.Store, error) {
	logger = logger.Named("history")
	logger.Info("opening history store", zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendFile, "":
		store, err := file.New(file.Config{Path: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("open history file: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		logger.Warn("memory history does not survive restarts; every run starts empty")
		return memory.New(), nil
	case config.BackendSQLite:
		store, err := sqlite.New(ctx, cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres history: %w", err)
		}
		return store, nil
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("open gcs history: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}
