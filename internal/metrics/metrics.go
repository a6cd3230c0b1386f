// Package metrics exposes Prometheus counters for the document store,
// numbering and import paths. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	cacheRequests     *prometheus.CounterVec
	backendOps        *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	importedDocuments *prometheus.CounterVec
	reservations      *prometheus.CounterVec
}

// New registers the collectors on registerer; nil means the default registerer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicekeeper_cache_requests_total",
			Help: "Listing cache lookups by document type and result (hit, miss).",
		}, []string{"type", "result"}),
		backendOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicekeeper_backend_operations_total",
			Help: "Storage backend operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoicekeeper_backend_operation_duration_seconds",
			Help:    "Storage backend operation latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"backend", "op"}),
		importedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicekeeper_import_documents_total",
			Help: "Import candidates by result (imported, skipped, failed).",
		}, []string{"result"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicekeeper_number_reservations_total",
			Help: "Number reservation attempts by result (reserved, taken, error).",
		}, []string{"result"}),
	}

	registerer.MustRegister(m.cacheRequests, m.backendOps, m.backendDuration, m.importedDocuments, m.reservations)
	return m
}

func (m *Metrics) CacheHit(docType string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(docType, "hit").Inc()
}

func (m *Metrics) CacheMiss(docType string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(docType, "miss").Inc()
}

// ObserveBackend records one backend call. err == nil counts as "ok".
func (m *Metrics) ObserveBackend(backend, op string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendOps.WithLabelValues(backend, op, result).Inc()
	m.backendDuration.WithLabelValues(backend, op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Imported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importedDocuments.WithLabelValues("imported").Add(float64(n))
}

func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importedDocuments.WithLabelValues("skipped").Add(float64(n))
}

func (m *Metrics) ImportFailed() {
	if m == nil {
		return
	}
	m.importedDocuments.WithLabelValues("failed").Inc()
}

// Reservation records a reservation attempt; result is reserved, taken or error.
func (m *Metrics) Reservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}
