package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxorio/taskexec/pkg/core/concurrency"
)

// poolCollector reads gauges straight from the pool on every scrape.
type poolCollector struct {
	pool *concurrency.WorkerPool

	queueSize     *prometheus.Desc
	queueCapacity *prometheus.Desc
	activeWorkers *prometheus.Desc
	workers       *prometheus.Desc
	state         *prometheus.Desc
}

func newPoolCollector(p *concurrency.WorkerPool) *poolCollector {
	labels := prometheus.Labels{"pool": p.Name()}
	return &poolCollector{
		pool:          p,
		queueSize:     prometheus.NewDesc("taskexec_queue_size", "Tasks waiting in the pool queue", nil, labels),
		queueCapacity: prometheus.NewDesc("taskexec_queue_capacity", "Queue bound of the pool", nil, labels),
		activeWorkers: prometheus.NewDesc("taskexec_active_workers", "Workers currently executing a task", nil, labels),
		workers:       prometheus.NewDesc("taskexec_workers", "Configured worker count", nil, labels),
		state: prometheus.NewDesc("taskexec_pool_state",
			"Pool lifecycle state (0 running, 1 shutting down, 2 terminated)", nil, labels),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueSize
	ch <- c.queueCapacity
	ch <- c.activeWorkers
	ch <- c.workers
	ch <- c.state
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(c.pool.QueueSize()))
	ch <- prometheus.MustNewConstMetric(c.queueCapacity, prometheus.GaugeValue, float64(c.pool.QueueCapacity()))
	ch <- prometheus.MustNewConstMetric(c.activeWorkers, prometheus.GaugeValue, float64(c.pool.ActiveCount()))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(c.pool.Workers()))
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(c.pool.State()))
}
