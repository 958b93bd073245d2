// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsDispatched  *prometheus.CounterVec // label kind=clip|relay
	ClipOutcomes        *prometheus.CounterVec // label status
	TokenRefreshes      *prometheus.CounterVec // label result=success|failure|reused
	NotificationsFailed prometheus.Counter
	NotificationsSent   prometheus.Counter

	// Histograms (seconds)
	ClipWorkflowDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_commands_dispatched_total", Help: "Number of chat commands dispatched by kind"}, []string{"kind"})
		ClipOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_clip_outcomes_total", Help: "Clip workflow results by status"}, []string{"status"})
		TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "relay_token_refreshes_total", Help: "Twitch token refresh attempts by result"}, []string{"result"})
		NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_notifications_failed_total", Help: "Team channel notifications that could not be delivered"})
		NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_notifications_sent_total", Help: "Team channel notifications delivered"})
		ClipWorkflowDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "relay_clip_workflow_duration_seconds", Help: "End-to-end clip workflow duration seconds", Buckets: prometheus.DefBuckets})
	})
}

// RecordCommand counts a dispatched command of the given kind.
func RecordCommand(kind string) {
	if CommandsDispatched != nil {
		CommandsDispatched.WithLabelValues(kind).Inc()
	}
}

// RecordClipOutcome counts a finished clip workflow.
func RecordClipOutcome(status string) {
	if ClipOutcomes != nil {
		ClipOutcomes.WithLabelValues(status).Inc()
	}
}

// RecordRefresh counts a token refresh attempt.
func RecordRefresh(result string) {
	if TokenRefreshes != nil {
		TokenRefreshes.WithLabelValues(result).Inc()
	}
}

// RecordNotification counts a delivered or failed team notification.
func RecordNotification(ok bool) {
	if ok {
		if NotificationsSent != nil {
			NotificationsSent.Inc()
		}
		return
	}
	if NotificationsFailed != nil {
		NotificationsFailed.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
