// Package monitor runs one pass of the listing pipeline: gate on the
// operating window, then capture, extract, dedup against history and notify
// for each target in order. A failing target never stops the others.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/listingwatch/internal/capture"
	"github.com/JakeFAU/listingwatch/internal/extract"
	"github.com/JakeFAU/listingwatch/internal/history"
	"github.com/JakeFAU/listingwatch/internal/listing"
	"github.com/JakeFAU/listingwatch/internal/metrics"
	"github.com/JakeFAU/listingwatch/internal/notify"
	"github.com/JakeFAU/listingwatch/internal/window"
)

// ErrOutsideWindow ends a run that was gated by the operating window. It is a
// normal outcome, not a failure.
var ErrOutsideWindow = errors.New("outside operating window")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Extractor turns a screenshot into candidates.
type Extractor interface {
	Extract(ctx context.Context, image []byte) extract.Outcome
}

// Deps are the collaborators of a Monitor. Metrics and Logger are optional.
type Deps struct {
	Targets   []string
	Window    window.Window
	Clock     Clock
	Capturer  capture.Capturer
	Extractor Extractor
	Store     history.Store
	Notifier  notify.Notifier
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Options tune a run.
type Options struct {
	// Force skips the operating window check.
	Force bool
	// NotifyTitle overrides notify.DefaultTitle.
	NotifyTitle string
}

// Summary reports what a run did.
type Summary struct {
	RunID         string
	Targets       int
	TargetsFailed int
	Candidates    int
	Skipped       int
	Findings      []listing.Finding
	Duration      time.Duration
}

// Monitor executes runs. It is not safe for concurrent Run calls.
type Monitor struct {
	deps     Deps
	opts     Options
	logger   *zap.Logger
	newRunID func() string
}

// New validates deps and builds a Monitor.
func New(deps Deps, opts Options) (*Monitor, error) {
	switch {
	case deps.Clock == nil:
		return nil, errors.New("monitor: clock is required")
	case deps.Capturer == nil:
		return nil, errors.New("monitor: capturer is required")
	case deps.Extractor == nil:
		return nil, errors.New("monitor: extractor is required")
	case deps.Store == nil:
		return nil, errors.New("monitor: history store is required")
	case deps.Notifier == nil:
		return nil, errors.New("monitor: notifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		deps:     deps,
		opts:     opts,
		logger:   logger.Named("monitor"),
		newRunID: uuid.NewString,
	}, nil
}

// Run performs one pass. It returns ErrOutsideWindow when gated, a wrapped
// error when history cannot be loaded or ctx is canceled, and nil otherwise,
// whatever happened to individual targets.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: m.newRunID()}
	logger := m.logger.With(zap.String("run_id", summary.RunID))

	start := m.deps.Clock.Now()
	if !m.opts.Force && !m.deps.Window.ShouldRun(start) {
		logger.Info("skipping run", zap.String("reason", m.deps.Window.Explain(start)))
		return summary, ErrOutsideWindow
	}
	if m.opts.Force {
		logger.Info("operating window check bypassed")
	}

	seen, err := m.deps.Store.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load history: %w", err)
	}
	logger.Info("run started",
		zap.Int("targets", len(m.deps.Targets)),
		zap.Int("known_keys", seen.Len()),
	)

	for i, target := range m.deps.Targets {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted: %w", err)
		}
		label := fmt.Sprintf("Target [%d]", i+1)
		m.processTarget(ctx, logger.With(zap.String("target", label)), target, seen, &summary)
	}

	end := m.deps.Clock.Now()
	summary.Duration = end.Sub(start)
	m.deps.Metrics.ObserveRun(summary.Duration, end)
	logger.Info("run finished",
		zap.Int("targets", summary.Targets),
		zap.Int("targets_failed", summary.TargetsFailed),
		zap.Int("candidates", summary.Candidates),
		zap.Int("findings", len(summary.Findings)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (m *Monitor) processTarget(ctx context.Context, logger *zap.Logger, target string, seen history.Set, summary *Summary) {
	summary.Targets++
	logger.Info("checking target")
	logger.Debug("target url", zap.String("url", target))

	image, err := m.deps.Capturer.Capture(ctx, target)
	if err != nil {
		summary.TargetsFailed++
		m.deps.Metrics.ObserveTarget(metrics.StatusCaptureFailed)
		logger.Error("capture failed", zap.Error(err))
		return
	}

	outcome := m.deps.Extractor.Extract(ctx, image)
	for _, a := range outcome.Attempts {
		m.deps.Metrics.ObserveModelAttempt(a.Model, a.Err)
	}
	if !outcome.OK() {
		summary.TargetsFailed++
		m.deps.Metrics.ObserveTarget(metrics.StatusExtractFailed)
		logger.Warn("no candidates extracted", zap.Error(outcome.Err()))
		return
	}
	m.deps.Metrics.ObserveTarget(metrics.StatusOK)
	m.deps.Metrics.ObserveCandidates(len(outcome.Candidates))
	summary.Candidates += len(outcome.Candidates)
	logger.Info("candidates extracted",
		zap.Int("count", len(outcome.Candidates)),
		zap.String("model", outcome.Model),
		zap.Bool("fell_back", outcome.FellBack()),
	)

	for _, c := range outcome.Candidates {
		m.handleCandidate(ctx, logger, target, c, seen, summary)
	}
}

func (m *Monitor) handleCandidate(ctx context.Context, logger *zap.Logger, target string, c listing.Candidate, seen history.Set, summary *Summary) {
	key := listing.NormalizeKey(c.RawID)
	if key == "" || seen.Has(key) {
		summary.Skipped++
		logger.Info("skipping (known or invalid)", zap.String("id", c.RawID), zap.String("key", key))
		return
	}

	// A Finding is announced only once it is recorded.
	if err := m.deps.Store.Append(ctx, key); err != nil {
		m.deps.Metrics.ObserveHistoryError()
		logger.Error("history append failed; notification skipped",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	seen.Add(key)

	finding := c.Promote(key, target, m.deps.Clock.Now())
	summary.Findings = append(summary.Findings, finding)
	m.deps.Metrics.ObserveFinding()
	logger.Info("new listing", zap.String("key", key), zap.String("listing", finding.Summary()))

	m.deps.Notifier.Notify(ctx, notify.FindingMessage(m.opts.NotifyTitle, finding))
}
