package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Normaleshok/domain-checker/internal/domain"
)

type Collector struct {
	probesTotal    *prometheus.CounterVec
	probeDuration  prometheus.Histogram
	inFlight       prometheus.Gauge
	batchesTotal   *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	domainsPending prometheus.Gauge
}

// NewCollector registers the collector's metrics on reg. Pass a fresh
// prometheus.NewRegistry() per run to avoid duplicate registration.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		probesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domaincheck_probes_total",
				Help: "Probes completed, by DNS and HTTP outcome (true, false, unknown)",
			},
			[]string{"dns", "http"},
		),
		probeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "domaincheck_probe_duration_seconds",
				Help:    "Wall time of a single domain probe",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
		),
		inFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "domaincheck_probes_in_flight",
				Help: "Probes currently running",
			},
		),
		batchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domaincheck_batches_total",
				Help: "Batches processed, by status (ok, failed)",
			},
			[]string{"status"},
		),
		batchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "domaincheck_batch_duration_seconds",
				Help:    "Wall time to probe and sink one batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		domainsPending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "domaincheck_domains_pending",
				Help: "Domains not yet processed in the current run",
			},
		),
	}
}

func label(t domain.Tri) string {
	if t == domain.Unknown {
		return "unknown"
	}
	return t.String()
}

func (c *Collector) ProbeStarted() {
	c.inFlight.Inc()
}

func (c *Collector) ProbeFinished(r domain.ProbeResult, took time.Duration) {
	c.inFlight.Dec()
	c.probesTotal.WithLabelValues(label(r.DNS), label(r.HTTP)).Inc()
	c.probeDuration.Observe(took.Seconds())
}

func (c *Collector) RecordBatch(ok bool, took time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	c.batchesTotal.WithLabelValues(status).Inc()
	c.batchDuration.Observe(took.Seconds())
}

func (c *Collector) SetPending(n int) {
	c.domainsPending.Set(float64(n))
}
