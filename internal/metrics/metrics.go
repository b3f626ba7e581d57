package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collision metrics
	DragFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_drag_frames_total",
			Help: "Total number of drag frames resolved",
		},
	)

	PushCascadeSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_push_cascade_size",
			Help:    "Number of bodies displaced by one push cascade",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		},
	)

	SettlePassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_settle_passes_total",
			Help: "Total number of settle passes",
		},
		[]string{"result"}, // result: completed, cancelled
	)

	SettleStepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_settle_steps_total",
			Help: "Total number of settle integrator steps",
		},
	)

	// Force layout metrics
	SimulationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_simulation_runs_total",
			Help: "Total number of force simulation runs started",
		},
		[]string{"mode"}, // mode: manual, auto
	)

	SimulationTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_simulation_ticks_total",
			Help: "Total number of force simulation ticks",
		},
	)

	SimulationsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_simulations_running",
			Help: "Number of canvases with a running force simulation",
		},
	)

	// Hierarchy metrics
	ReparentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_reparent_total",
			Help: "Total number of hierarchy connection attempts",
		},
		[]string{"result"}, // result: accepted, cycle, not_found
	)

	SizeReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_size_reports_total",
			Help: "Total number of observed size reports",
		},
		[]string{"result"}, // result: applied, ignored, coalesced
	)

	// Session metrics
	CanvasSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_sessions_active",
			Help: "Number of open canvas sessions",
		},
	)

	CanvasNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_nodes_total",
			Help: "Total number of nodes across open canvases",
		},
	)

	CanvasBodiesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "canvas_bodies_total",
			Help: "Total number of measured bodies across open canvases",
		},
	)

	SessionCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canvas_command_duration_seconds",
			Help:    "Time spent executing a command on a canvas session",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"command"},
	)

	SessionPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canvas_session_panics_total",
			Help: "Total number of recovered panics in canvas sessions",
		},
	)

	// Snapshot store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_store_operation_duration_seconds",
			Help:    "Duration of snapshot store operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_store_operation_errors_total",
			Help: "Total number of snapshot store operation errors",
		},
		[]string{"backend", "operation"},
	)

	StoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapshot_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"backend"},
	)

	StoreBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_store_breaker_trips_total",
			Help: "Total number of times the store circuit breaker opened",
		},
		[]string{"backend"},
	)

	ScheduledJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Total number of scheduled maintenance job runs",
		},
		[]string{"job", "outcome"},
	)

	IntegrityIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canvas_integrity_issues",
			Help: "Issues found by the last stored-canvas audit, by check",
		},
		[]string{"check"},
	)

	// Snapshot cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_hits_total",
			Help: "Total number of snapshot cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_misses_total",
			Help: "Total number of snapshot cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_evictions_total",
			Help: "Total number of snapshot cache evictions",
		},
		[]string{"cache"},
	)

	CacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapshot_cache_items",
			Help: "Current number of items in the snapshot cache",
		},
		[]string{"cache"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)

	WebSocketMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received from clients",
		},
		[]string{"type"},
	)
)
