package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Transition attempts by workflow kind, action and outcome
	TransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_transitions_total",
			Help: "Total number of workflow transition attempts",
		},
		[]string{"kind", "action", "outcome"}, // outcome is "ok" or the error kind
	)

	// Permission evaluations by entity and result
	PermissionEvalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_permission_evaluations_total",
			Help: "Total number of permission engine evaluations",
		},
		[]string{"entity", "result"}, // result is "allow" or "deny"
	)

	// Seeder runs by module and outcome
	SeederRunCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_permission_seed_runs_total",
			Help: "Total number of permission seeder runs",
		},
		[]string{"module", "outcome"},
	)

	// Vision sync attempts by handler and outcome
	VisionSyncCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_vision_sync_total",
			Help: "Total number of outbound VISION sync calls",
		},
		[]string{"handler", "outcome"},
	)

	// Notification dispatch outcomes
	NotifyDispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_notifications_dispatched_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"outcome"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Auth pipeline errors
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "missing_token", "invalid_token", "no_realm", ...
	)

	// Workspace operation counter
	WorkspaceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etools_workspace_operations_total",
			Help: "Total number of workspace operations",
		},
		[]string{"operation"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etools_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etools_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete", "transition"
	)

	// Transition duration by workflow kind
	TransitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etools_transition_duration_seconds",
			Help:    "Duration of workflow transitions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "action"},
	)
)

// Gauge metrics
var (
	// Active workspaces
	ActiveWorkspacesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "etools_active_workspaces",
			Help: "Number of currently active workspaces",
		},
	)

	// Pending notifications in the outbox
	OutboxPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "etools_notification_outbox_pending",
			Help: "Number of undelivered notification outbox rows",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etools_info",
			Help: "Information about the back-office core",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(TransitionCounter)
	prometheus.MustRegister(PermissionEvalCounter)
	prometheus.MustRegister(SeederRunCounter)
	prometheus.MustRegister(VisionSyncCounter)
	prometheus.MustRegister(NotifyDispatchCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(WorkspaceOperationCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(TransitionDuration)

	prometheus.MustRegister(ActiveWorkspacesGauge)
	prometheus.MustRegister(OutboxPendingGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// RecordTransition records the outcome of a transition attempt.
func RecordTransition(kind, action, outcome string) {
	TransitionCounter.With(prometheus.Labels{
		"kind": kind, "action": action, "outcome": outcome,
	}).Inc()
}

// RecordPermissionEval records a single permission engine decision.
func RecordPermissionEval(entity string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	PermissionEvalCounter.With(prometheus.Labels{"entity": entity, "result": result}).Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordWorkspaceOperation records a workspace operation by name
func RecordWorkspaceOperation(operation string) {
	WorkspaceOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
