package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a tracker run
type Metrics struct {
	Registry     *prometheus.Registry
	ChecksTotal  *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
	AlertsTotal  *prometheus.CounterVec
	CurrentPrice *prometheus.GaugeVec
	RunDuration  prometheus.Histogram
	LastRunUnix  prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	checks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_checks_total",
			Help: "Total entity checks by kind (product or search).",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_errors_total",
			Help: "Total per-entity failures by error type.",
		},
		[]string{"error_type"},
	)
	alerts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_alerts_total",
			Help: "Total alerts emitted by kind.",
		},
		[]string{"kind"},
	)
	currentPrice := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricewatch_product_price",
			Help: "Last observed price per tracked product.",
		},
		[]string{"product"},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Duration of a complete tracker run.",
			Buckets: prometheus.DefBuckets,
		},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewatch_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run.",
		},
	)

	registry.MustRegister(checks, errorsTotal, alerts, currentPrice, runDuration, lastRun)

	return &Metrics{
		Registry:     registry,
		ChecksTotal:  checks,
		ErrorsTotal:  errorsTotal,
		AlertsTotal:  alerts,
		CurrentPrice: currentPrice,
		RunDuration:  runDuration,
		LastRunUnix:  lastRun,
	}
}

// IncCheck increments the checks counter for a kind label
func (m *Metrics) IncCheck(kind string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(kind).Inc()
}

// IncError increments the errors counter for a type label
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncAlert increments the alerts counter for a kind label
func (m *Metrics) IncAlert(kind string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(kind).Inc()
}

// SetPrice records the last observed price of a product
func (m *Metrics) SetPrice(product string, price float64) {
	if m == nil {
		return
	}
	m.CurrentPrice.WithLabelValues(product).Set(price)
}

// ObserveRun records a completed run
func (m *Metrics) ObserveRun(d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
	m.LastRunUnix.Set(float64(finished.Unix()))
}
