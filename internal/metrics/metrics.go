package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statuspage"

// Metrics holds the Prometheus collectors of both modes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	probeDuration   *prometheus.HistogramVec
	probeMasked     *prometheus.CounterVec
	reports         *prometheus.CounterVec
	ingested        *prometheus.CounterVec
	ingestRejected  *prometheus.CounterVec
	componentStatus *prometheus.GaugeVec
	historyFailures prometheus.Counter
	catalogReloads  *prometheus.CounterVec
}

// New creates the collectors and registers them on registerer when it is
// not nil.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Latency of outbound probe requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "result"},
		),
		probeMasked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_masked_failures_total",
				Help:      "Raw probe failures hidden below the debounce threshold",
			},
			[]string{"component"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_reports_total",
				Help:      "Reports sent to the central API by outcome",
			},
			[]string{"result"},
		),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_results_total",
				Help:      "Per-component results accepted from probe regions",
			},
			[]string{"region"},
		),
		ingestRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_rejected_total",
				Help:      "Probe reports rejected at the ingestion endpoint",
			},
			[]string{"reason"},
		),
		componentStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_status",
				Help:      "Current severity of a component (0 operational, 1 maintenance, 2 degraded, 3 outage)",
			},
			[]string{"component"},
		),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_write_failures_total",
			Help:      "Day record writes that failed and were dropped",
		}),
		catalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Catalog reload attempts by outcome",
			},
			[]string{"result"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.probeDuration,
			m.probeMasked,
			m.reports,
			m.ingested,
			m.ingestRejected,
			m.componentStatus,
			m.historyFailures,
			m.catalogReloads,
		)
	}
	return m
}

// ObserveProbe records one probe execution.
func (m *Metrics) ObserveProbe(componentID string, latency time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.probeDuration.WithLabelValues(componentID, result(ok)).Observe(latency.Seconds())
}

// MaskedFailure counts a failure the debouncer kept from being reported.
func (m *Metrics) MaskedFailure(componentID string) {
	if m == nil {
		return
	}
	m.probeMasked.WithLabelValues(componentID).Inc()
}

// ReportSent counts one report delivery attempt.
func (m *Metrics) ReportSent(ok bool) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(result(ok)).Inc()
}

// Ingested counts results accepted from a region.
func (m *Metrics) Ingested(region string, n int) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(region).Add(float64(n))
}

// IngestRejected counts a rejected report ("malformed", "invalid").
func (m *Metrics) IngestRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestRejected.WithLabelValues(reason).Inc()
}

// SetComponentStatus exports the current severity priority of a component.
func (m *Metrics) SetComponentStatus(componentID string, priority int) {
	if m == nil {
		return
	}
	m.componentStatus.WithLabelValues(componentID).Set(float64(priority))
}

// ForgetComponent drops the status series of a component removed from the
// catalog.
func (m *Metrics) ForgetComponent(componentID string) {
	if m == nil {
		return
	}
	m.componentStatus.DeleteLabelValues(componentID)
}

// HistoryWriteFailed counts a dropped day record write.
func (m *Metrics) HistoryWriteFailed() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
}

// CatalogReload counts a reload attempt.
func (m *Metrics) CatalogReload(ok bool) {
	if m == nil {
		return
	}
	m.catalogReloads.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
