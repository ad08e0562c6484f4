// Package metrics exposes Prometheus instrumentation for the visor.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "visor_"

	resultSuccess = "success"
	resultError   = "error"
	resultPartial = "partial"
	resultNoData  = "no_data"
)

var (
	registerOnce sync.Once

	loadTotal   *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec

	cacheRequests      *prometheus.CounterVec
	cacheInvalidations prometheus.Counter

	rowsDropped   *prometheus.CounterVec
	schemaErrors  *prometheus.CounterVec
	recordsLoaded *prometheus.GaugeVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers the visor metrics with the default registry. Calling it
// more than once is a no-op; helpers are no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		loadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "load_total",
				Help: "Total workbook loads by result",
			},
			[]string{"result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "load_latency_seconds",
				Help:    "Workbook load and transform latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		cacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_requests_total",
				Help: "Total dataset cache lookups by outcome",
			},
			[]string{"outcome"},
		)
		cacheInvalidations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_invalidations_total",
				Help: "Total explicit dataset cache invalidations",
			},
		)

		rowsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_dropped_total",
				Help: "Rows or cells dropped during load by sheet and reason",
			},
			[]string{"sheet", "reason"},
		)
		schemaErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "schema_errors_total",
				Help: "Sheets that failed to load because of a schema problem",
			},
			[]string{"sheet"},
		)
		recordsLoaded = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "records_loaded",
				Help: "Records produced by the most recent load, by sheet",
			},
			[]string{"sheet"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total spreadsheet exports by result",
			},
			[]string{"result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Spreadsheet export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			loadTotal,
			loadLatency,
			cacheRequests,
			cacheInvalidations,
			rowsDropped,
			schemaErrors,
			recordsLoaded,
			exportTotal,
			exportLatency,
		)
	})
}

// ObserveLoad records a workbook load and its duration
func ObserveLoad(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if loadTotal != nil {
		loadTotal.WithLabelValues(result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// CacheHit counts a lookup served from the published dataset
func CacheHit() {
	if cacheRequests != nil {
		cacheRequests.WithLabelValues("hit").Inc()
	}
}

// CacheMiss counts a lookup that had to run the loader
func CacheMiss() {
	if cacheRequests != nil {
		cacheRequests.WithLabelValues("miss").Inc()
	}
}

// CacheInvalidated counts an explicit refresh
func CacheInvalidated() {
	if cacheInvalidations != nil {
		cacheInvalidations.Inc()
	}
}

// AddRowsDropped adds count to the dropped counter of a sheet
func AddRowsDropped(sheet, reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if rowsDropped != nil {
		rowsDropped.WithLabelValues(sheet, reason).Add(float64(count))
	}
}

// IncSchemaError counts a sheet rejected for a missing or ambiguous column
func IncSchemaError(sheet string) {
	if schemaErrors != nil {
		schemaErrors.WithLabelValues(sheet).Inc()
	}
}

// SetRecordsLoaded records how many records a sheet produced
func SetRecordsLoaded(sheet string, count int) {
	if recordsLoaded != nil {
		recordsLoaded.WithLabelValues(sheet).Set(float64(count))
	}
}

// ObserveExport records an export and its duration
func ObserveExport(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultPartial = resultPartial
	ResultNoData  = resultNoData
)

// Hooks adapts the cache helpers to the cache.Observer interface
type Hooks struct{}

// CacheHit implements cache.Observer
func (Hooks) CacheHit() { CacheHit() }

// CacheMiss implements cache.Observer
func (Hooks) CacheMiss() { CacheMiss() }

// CacheInvalidated implements cache.Observer
func (Hooks) CacheInvalidated() { CacheInvalidated() }
