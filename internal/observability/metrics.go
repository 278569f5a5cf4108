// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "trident_trader"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Replay metrics
	EventsProcessed *prometheus.CounterVec

	// Decision metrics
	DecisionsTotal     *prometheus.CounterVec
	OperatorSelections *prometheus.CounterVec
	LambdaGlobal       prometheus.Gauge
	Temperature        prometheus.Gauge

	// Control metrics
	RegimeSteps        *prometheus.CounterVec
	ZoneSteps          *prometheus.CounterVec
	Type2Triggers      prometheus.Counter
	StructuralMismatch prometheus.Gauge

	// Execution metrics
	FillsTotal     prometheus.Counter
	RiskRejections *prometheus.CounterVec
	Equity         prometheus.Gauge

	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	FoldsCompleted prometheus.Counter
	FoldDuration   prometheus.Histogram

	// Sink metrics
	DBQueryDuration   *prometheus.HistogramVec
	DBQueryErrors     *prometheus.CounterVec
	MessagesPublished prometheus.Counter
	PublishErrors     prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_processed_total",
			Help:      "Total number of replayed events by type",
		}, []string{"event_type"}),

		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "steps_total",
			Help:      "Total number of decision steps by gate state",
		}, []string{"armed"}),
		OperatorSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "operator_selections_total",
			Help:      "Total number of selections by operator",
		}, []string{"operator"}),
		LambdaGlobal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "lambda_global",
			Help:      "Most recent global lambda score",
		}),
		Temperature: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "selector_temperature",
			Help:      "Most recent selector softmax temperature",
		}),

		RegimeSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "regime_steps_total",
			Help:      "Total number of decision steps by regime label",
		}, []string{"regime"}),
		ZoneSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "zone_steps_total",
			Help:      "Total number of decision steps by risk zone",
		}, []string{"zone"}),
		Type2Triggers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "type2_triggers_total",
			Help:      "Total number of steps that warranted a structural update",
		}),
		StructuralMismatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "structural_mismatch",
			Help:      "Most recent load minus expected burden",
		}),

		FillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "fills_total",
			Help:      "Total number of simulated fills applied",
		}),
		RiskRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "risk_rejections_total",
			Help:      "Total number of orders rejected by risk checks by reason",
		}, []string{"reason"}),
		Equity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "equity",
			Help:      "Most recent marked-to-market equity",
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs by kind and status",
		}, []string{"kind", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		FoldsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "folds_completed_total",
			Help:      "Total number of completed walk-forward folds",
		}),
		FoldDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "fold_duration_seconds",
			Help:      "Walk-forward fold duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "messages_total",
			Help:      "Total number of decision messages published",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "errors_total",
			Help:      "Total number of failed publish batches",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordEvent increments the replayed events counter.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(eventType).Inc()
}

// RecordDecision records one decision step.
func (m *Metrics) RecordDecision(armed bool, operator string, lambdaGlobal, temperature, equity float64) {
	if m == nil {
		return
	}
	label := "false"
	if armed {
		label = "true"
	}
	m.DecisionsTotal.WithLabelValues(label).Inc()
	m.OperatorSelections.WithLabelValues(operator).Inc()
	m.LambdaGlobal.Set(lambdaGlobal)
	m.Temperature.Set(temperature)
	m.Equity.Set(equity)
}

// RecordControl records the control diagnostics of one decision step.
func (m *Metrics) RecordControl(regime, zone string, type2 bool, mismatch float64) {
	if m == nil {
		return
	}
	m.RegimeSteps.WithLabelValues(regime).Inc()
	m.ZoneSteps.WithLabelValues(zone).Inc()
	if type2 {
		m.Type2Triggers.Inc()
	}
	m.StructuralMismatch.Set(mismatch)
}

// RecordFill increments the fills counter.
func (m *Metrics) RecordFill() {
	if m == nil {
		return
	}
	m.FillsTotal.Inc()
}

// RecordRejection increments the risk rejection counter for reason.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.RiskRejections.WithLabelValues(reason).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(kind, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordFold records a completed walk-forward fold.
func (m *Metrics) RecordFold(durationSeconds float64) {
	if m == nil {
		return
	}
	m.FoldsCompleted.Inc()
	m.FoldDuration.Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPublish records a publish batch.
func (m *Metrics) RecordPublish(messages int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PublishErrors.Inc()
		return
	}
	m.MessagesPublished.Add(float64(messages))
}
