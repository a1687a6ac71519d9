// Package metrics exposes Prometheus collectors for a monitoring run. A
// run is a short-lived batch job, so collectors live in a private registry
// that is optionally pushed to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Target outcomes.
const (
	StatusOK            = "ok"
	StatusCaptureFailed = "capture_failed"
	StatusExtractFailed = "extract_failed"
)

// DefaultJob is the Pushgateway job name.
const DefaultJob = "listingwatch"

// Recorder owns the collectors for one process. All methods are safe on a nil
// *Recorder, which records nothing.
type Recorder struct {
	registry *prometheus.Registry

	targetsTotal       *prometheus.CounterVec
	candidatesTotal    prometheus.Counter
	findingsTotal      prometheus.Counter
	historyErrorsTotal prometheus.Counter
	modelAttemptsTotal *prometheus.CounterVec
	runDurationSeconds prometheus.Gauge
	lastRunUnixTime    prometheus.Gauge
}

// New registers every collector in a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		targetsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listingwatch_targets_total",
				Help: "Targets processed, labeled by outcome.",
			},
			[]string{"status"},
		),
		candidatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "listingwatch_candidates_total",
				Help: "Candidates returned by extraction.",
			},
		),
		findingsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "listingwatch_findings_total",
				Help: "New listings recorded and announced.",
			},
		),
		historyErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "listingwatch_history_append_errors_total",
				Help: "Findings that could not be recorded in history.",
			},
		),
		modelAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listingwatch_model_attempts_total",
				Help: "Extraction attempts, labeled by model and result.",
			},
			[]string{"model", "result"},
		),
		runDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "listingwatch_run_duration_seconds",
				Help: "Wall time of the last run.",
			},
		),
		lastRunUnixTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "listingwatch_last_run_timestamp_seconds",
				Help: "Unix time the last run completed.",
			},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveTarget counts one processed target.
func (r *Recorder) ObserveTarget(status string) {
	if r == nil {
		return
	}
	r.targetsTotal.WithLabelValues(status).Inc()
}

// ObserveCandidates adds n extracted candidates.
func (r *Recorder) ObserveCandidates(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.candidatesTotal.Add(float64(n))
}

// ObserveFinding counts one new listing.
func (r *Recorder) ObserveFinding() {
	if r == nil {
		return
	}
	r.findingsTotal.Inc()
}

// ObserveHistoryError counts a failed history append.
func (r *Recorder) ObserveHistoryError() {
	if r == nil {
		return
	}
	r.historyErrorsTotal.Inc()
}

// ObserveModelAttempt counts one call to a model.
func (r *Recorder) ObserveModelAttempt(model string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.modelAttemptsTotal.WithLabelValues(model, result).Inc()
}

// ObserveRun records the duration and completion time of a run.
func (r *Recorder) ObserveRun(duration time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.runDurationSeconds.Set(duration.Seconds())
	r.lastRunUnixTime.Set(float64(finished.Unix()))
}

// Push sends every collector to the Pushgateway at url, replacing the
// previous metrics for job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if job == "" {
		job = DefaultJob
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
