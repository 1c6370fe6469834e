package prometheus

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/taskexec/pkg/core/concurrency"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "taskexec"}, DefaultRegistry)

	// Metrics collection
	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Worker pool metrics
	TasksSubmitted *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksDiscarded *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec

	// Intake metrics
	IntakeMessages *prometheus.CounterVec

	// Admin server metrics
	AdminRequests *prometheus.CounterVec

	registerer prometheus.Registerer
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a new metrics collection
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_tasks_submitted_total",
				Help: "Tasks accepted past the shutdown check",
			},
			[]string{"pool"},
		),
		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_tasks_completed_total",
				Help: "Tasks executed, by outcome",
			},
			[]string{"pool", "status"}, // status: ok, error
		),
		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_tasks_rejected_total",
				Help: "Tasks refused with an error",
			},
			[]string{"pool", "policy"},
		),
		TasksDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_tasks_discarded_total",
				Help: "Tasks dropped without running",
			},
			[]string{"pool"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskexec_task_duration_seconds",
				Help:    "Task execution time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
			},
			[]string{"pool", "status"},
		),
		IntakeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_intake_messages_total",
				Help: "Messages received by the NATS intake, by result",
			},
			[]string{"subject", "result"}, // result: accepted, rejected
		),
		AdminRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskexec_admin_requests_total",
				Help: "Requests served by the admin endpoint",
			},
			[]string{"path", "status"},
		),
		registerer: registerer,
	}
}

// Observer returns a concurrency.Observer that records events for pool.
func (m *Metrics) Observer(pool string) concurrency.Observer {
	return &poolObserver{
		submitted: m.TasksSubmitted.WithLabelValues(pool),
		ok:        m.TasksCompleted.WithLabelValues(pool, "ok"),
		failed:    m.TasksCompleted.WithLabelValues(pool, "error"),
		rejected:  m.TasksRejected.MustCurryWith(prometheus.Labels{"pool": pool}),
		discarded: m.TasksDiscarded.WithLabelValues(pool),
		okTime:    m.TaskDuration.WithLabelValues(pool, "ok"),
		failTime:  m.TaskDuration.WithLabelValues(pool, "error"),
	}
}

type poolObserver struct {
	submitted, ok, failed, discarded prometheus.Counter
	rejected                         *prometheus.CounterVec
	okTime, failTime                 prometheus.Observer
}

func (o *poolObserver) TaskSubmitted() { o.submitted.Inc() }

func (o *poolObserver) TaskRejected(policy string) { o.rejected.WithLabelValues(policy).Inc() }

func (o *poolObserver) TaskDiscarded() { o.discarded.Inc() }

func (o *poolObserver) TaskCompleted(d time.Duration, err error) {
	if err != nil {
		o.failed.Inc()
		o.failTime.Observe(d.Seconds())
		return
	}
	o.ok.Inc()
	o.okTime.Observe(d.Seconds())
}

// RegisterPool exports queue and worker gauges read from p at scrape time.
// A pool registered under a name already in use replaces the old one.
func (m *Metrics) RegisterPool(p *concurrency.WorkerPool) error {
	c := newPoolCollector(p)
	err := m.registerer.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		m.registerer.Unregister(are.ExistingCollector)
		err = m.registerer.Register(c)
	}
	return err
}

// RecordIntakeMessage counts a message handled by the NATS intake
func (m *Metrics) RecordIntakeMessage(subject, result string) {
	m.IntakeMessages.WithLabelValues(subject, result).Inc()
}

// RecordAdminRequest counts an admin endpoint request
func (m *Metrics) RecordAdminRequest(path string, status int) {
	m.AdminRequests.WithLabelValues(path, statusCodeString(status)).Inc()
}

// statusCodeString converts status code to string
func statusCodeString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
