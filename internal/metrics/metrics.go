package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QBORequestsTotal tracks outbound QuickBooks API calls.
	QBORequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbo_api_requests_total",
			Help: "Total number of QuickBooks API requests made (by endpoint, method, and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// QBORequestDuration measures the duration of outbound QuickBooks calls.
	QBORequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qbo_api_request_duration_seconds",
			Help:    "Duration of QuickBooks API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 13), // 5ms → ~20s
		},
		[]string{"endpoint", "method"},
	)

	// TokenRefreshes counts access-token refresh attempts by result.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbo_token_refresh_total",
			Help: "Number of QuickBooks access-token refreshes (by result).",
		},
		[]string{"result"},
	)

	// SyncRuns counts orchestrated sync runs by outcome and failing error kind.
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbo_sync_runs_total",
			Help: "Number of QuickBooks sync runs (by status and error kind).",
		},
		[]string{"status", "kind"},
	)

	// SyncDuration measures end-to-end sync run duration.
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qbo_sync_duration_seconds",
			Help:    "Duration of QuickBooks sync runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)

	// OAuthCallbacks counts OAuth callback outcomes.
	OAuthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbo_oauth_callbacks_total",
			Help: "Number of OAuth callbacks handled (by result).",
		},
		[]string{"result"},
	)

	// EventPublishErrors tracks event publish failures by subject.
	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbo_event_publish_errors_total",
			Help: "Number of sync event publish failures by subject.",
		},
		[]string{"subject"},
	)
)

// IncQBORequest increments the QuickBooks API request counter.
func IncQBORequest(endpoint, method, status string) {
	QBORequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncTokenRefresh records a refresh attempt outcome ("ok" or "failed").
func IncTokenRefresh(result string) {
	TokenRefreshes.WithLabelValues(result).Inc()
}

// IncSyncRun records a finished sync run.
func IncSyncRun(status, kind string) {
	SyncRuns.WithLabelValues(status, kind).Inc()
}

// IncOAuthCallback records an OAuth callback outcome.
func IncOAuthCallback(result string) {
	OAuthCallbacks.WithLabelValues(result).Inc()
}

// IncEventPublishError increments the publish error counter for the given subject.
func IncEventPublishError(subject string) {
	EventPublishErrors.WithLabelValues(subject).Inc()
}

// ObserveDuration records elapsed time since start into a HistogramVec or SummaryVec.
func ObserveDuration(v any, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()
	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	}
}
