// Package metrics counts processing outcomes in a private Prometheus
// registry that can be written out as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pable/go-cs-matchstats/internal/model"
)

const namespace = "matchstats"

// Collector holds the counters for one process run.
type Collector struct {
	registry        *prometheus.Registry
	ResultCounter   *prometheus.CounterVec
	WarningCounter  *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	LastRun         prometheus.Gauge
}

// New registers all collectors in a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ResultCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_processed_total",
			Help:      "Recordings processed, by terminal status.",
		}, []string{"status"}),
		WarningCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_warnings_total",
			Help:      "Recordings with an unavailable event collection, by collection.",
		}, []string{"collection"}),
		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent delivering one payload to the sink.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"sink"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	c.registry.MustRegister(c.ResultCounter, c.WarningCounter, c.DeliveryLatency, c.LastRun)

	// Pre-create the status series so every status is exported even at zero.
	for _, s := range []model.Status{model.StatusDelivered, model.StatusAlreadyExists, model.StatusRejected, model.StatusSkipped, model.StatusFailed} {
		c.ResultCounter.With(prometheus.Labels{"status": string(s)})
	}

	return c
}

// ObserveResult counts one terminal status.
func (c *Collector) ObserveResult(status model.Status) {
	c.ResultCounter.With(prometheus.Labels{"status": string(status)}).Inc()
}

// ObserveMissing counts one unavailable collection.
func (c *Collector) ObserveMissing(collection model.Collection) {
	c.WarningCounter.With(prometheus.Labels{"collection": string(collection)}).Inc()
}

// ObserveDelivery records how long one delivery took.
func (c *Collector) ObserveDelivery(sink string, d time.Duration) {
	c.DeliveryLatency.With(prometheus.Labels{"sink": sink}).Observe(d.Seconds())
}

// Registry exposes the underlying registry, for tests and custom exporters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile stamps the run time and writes every metric to path in the
// text exposition format.
func (c *Collector) WriteTextfile(path string, now time.Time) error {
	c.LastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
