package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Metrics holds all Prometheus metrics for the orchestrator.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Graph execution metrics
	GraphExecutions   *prometheus.CounterVec
	ExecutionRounds   *prometheus.HistogramVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionsActive  prometheus.Gauge

	// Task metrics
	TaskDispatches *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksInFlight  prometheus.Gauge
	CallsAbandoned prometheus.Gauge

	// Collaborator call metrics
	ServiceCalls   *prometheus.CounterVec
	ServiceLatency *prometheus.HistogramVec

	// API metrics
	HTTPRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		GraphExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_graph_executions_total",
				Help: "Total number of graph executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionRounds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_execution_rounds",
				Help:    "Number of scheduling rounds per graph execution",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
			},
			[]string{},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_execution_duration_seconds",
				Help:    "Graph execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
			},
			[]string{"outcome"},
		),
		ExecutionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_executions_active",
				Help: "Number of graph executions in progress",
			},
		),

		TaskDispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_task_dispatches_total",
				Help: "Total number of tasks settled, by type and final status",
			},
			[]string{"task_type", "status"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_task_duration_seconds",
				Help:    "Task dispatch duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"task_type"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_tasks_in_flight",
				Help: "Number of tasks currently dispatched",
			},
		),
		CallsAbandoned: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_calls_abandoned",
				Help: "Number of collaborator calls still running after their deadline passed",
			},
		),

		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_service_calls_total",
				Help: "Total number of collaborator HTTP calls",
			},
			[]string{"service", "status_class"},
		),
		ServiceLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_service_latency_seconds",
				Help:    "Collaborator HTTP call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"service"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordExecution records a finished graph execution.
func (m *Metrics) RecordExecution(outcome string, rounds int, d time.Duration) {
	if m == nil {
		return
	}
	m.GraphExecutions.WithLabelValues(outcome).Inc()
	m.ExecutionRounds.WithLabelValues().Observe(float64(rounds))
	m.ExecutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ExecutionStarted and ExecutionFinished track active executions.
func (m *Metrics) ExecutionStarted() {
	if m != nil {
		m.ExecutionsActive.Inc()
	}
}

func (m *Metrics) ExecutionFinished() {
	if m != nil {
		m.ExecutionsActive.Dec()
	}
}

// TaskStarted marks a task as in flight.
func (m *Metrics) TaskStarted() {
	if m != nil {
		m.TasksInFlight.Inc()
	}
}

// RecordTask records a settled task and clears its in-flight mark.
func (m *Metrics) RecordTask(taskType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
	m.TaskDispatches.WithLabelValues(taskType, status).Inc()
	m.TaskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

// CallAbandoned and AbandonedCallReturned track invoker calls that outlive
// their deadline.
func (m *Metrics) CallAbandoned() {
	if m != nil {
		m.CallsAbandoned.Inc()
	}
}

func (m *Metrics) AbandonedCallReturned() {
	if m != nil {
		m.CallsAbandoned.Dec()
	}
}

// CountTask counts a task that settled without being dispatched, such as
// a routing failure or a task blocked by a failed dependency.
func (m *Metrics) CountTask(taskType, status string) {
	if m == nil {
		return
	}
	m.TaskDispatches.WithLabelValues(taskType, status).Inc()
}

// RecordServiceCall records one collaborator call. statusCode 0 means the
// call never produced a response.
func (m *Metrics) RecordServiceCall(service string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, StatusClass(statusCode)).Inc()
	m.ServiceLatency.WithLabelValues(service).Observe(d.Seconds())
}

// RecordHTTPRequest records one API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RecordError counts err under its error code. Errors without a code are
// counted as "unknown".
func (m *Metrics) RecordError(err error, component string) {
	if m == nil || err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on, or
// "error" for 0.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
