package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/campus-routine-api/internal/models"
)

const metricsNamespace = "campus_routine"

// runningMean accumulates a count and a total duration for the JSON summary.
type runningMean struct {
	count uint64
	nanos uint64
}

func (r *runningMean) add(d time.Duration) {
	atomic.AddUint64(&r.count, 1)
	atomic.AddUint64(&r.nanos, uint64(d.Nanoseconds()))
}

func (r *runningMean) snapshot() (uint64, float64) {
	count := atomic.LoadUint64(&r.count)
	if count == 0 {
		return 0, 0
	}
	return count, float64(atomic.LoadUint64(&r.nanos)) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns a private Prometheus registry for the routine service and mirrors the
// headline counters into a JSON snapshot for /metrics/summary.
type MetricsService struct {
	handler http.Handler

	httpLatency   *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	cacheLatency  prometheus.Histogram
	cacheWrites   prometheus.Histogram
	cacheRatio    prometheus.Gauge
	dbLatency     *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	importBatches *prometheus.CounterVec
	importRows    prometheus.Counter
	reportJobs    *prometheus.CounterVec

	requests  runningMean
	queries   runningMean
	hits      uint64
	misses    uint64
	issues    uint64
	committed uint64
	rejected  uint64
	finished  uint64
	failed    uint64
}

// NewMetricsService registers the collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template.",
		}, []string{"method", "route", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read-model cache lookups by result.",
		}, []string{"result"}),
		cacheLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookup_seconds",
			Help:      "Read-model cache lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "write_seconds",
			Help:      "Read-model cache write latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Hits over total read-model lookups.",
		}),
		dbLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_seconds",
			Help:      "Routine repository query latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflict_issues_total",
			Help:      "Issues raised by the conflict detector by kind.",
		}, []string{"kind"}),
		importBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Bulk import batches by outcome.",
		}, []string{"outcome"}),
		importRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "import",
			Name:      "rows_committed_total",
			Help:      "Rows committed through bulk import.",
		}),
		reportJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "reports",
			Name:      "jobs_total",
			Help:      "Export jobs reaching a terminal status.",
		}, []string{"type", "status"}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Goroutines currently running.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	return m
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpLatency.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.requests.add(duration)
}

// RecordCacheOperation records a read-model lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.hits, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.misses, 1)
	}
	m.cacheRatio.Set(m.hitRatio())
}

// ObserveCacheWrite records a read-model write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// ObserveDBQuery records repository timing under a short query label.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbLatency.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.add(duration)
}

// RecordConflicts counts detector issues by kind.
func (m *MetricsService) RecordConflicts(issues []models.ConflictIssue) {
	if m == nil || len(issues) == 0 {
		return
	}
	for _, issue := range issues {
		m.conflicts.WithLabelValues(string(issue.Kind)).Inc()
	}
	atomic.AddUint64(&m.issues, uint64(len(issues)))
}

// RecordImport counts a bulk import batch. Outcome is committed, rejected or invalid.
func (m *MetricsService) RecordImport(outcome string, rows int) {
	if m == nil {
		return
	}
	m.importBatches.WithLabelValues(outcome).Inc()
	switch outcome {
	case "committed":
		m.importRows.Add(float64(rows))
		atomic.AddUint64(&m.committed, 1)
	case "rejected":
		atomic.AddUint64(&m.rejected, 1)
	}
}

// RecordReportJob counts an export job that reached FINISHED or FAILED.
func (m *MetricsService) RecordReportJob(reportType models.ReportType, status models.ReportStatus) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(string(reportType), string(status)).Inc()
	switch status {
	case models.ReportStatusFinished:
		atomic.AddUint64(&m.finished, 1)
	case models.ReportStatusFailed:
		atomic.AddUint64(&m.failed, 1)
	}
}

func (m *MetricsService) hitRatio() float64 {
	hits := atomic.LoadUint64(&m.hits)
	total := hits + atomic.LoadUint64(&m.misses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot returns the headline counters for the admin summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests, avgRequestMs := m.requests.snapshot()
	queries, avgQueryMs := m.queries.snapshot()
	return models.SystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                atomic.LoadUint64(&m.hits),
		CacheMisses:              atomic.LoadUint64(&m.misses),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: avgQueryMs,
		ConflictIssues:           atomic.LoadUint64(&m.issues),
		ImportsCommitted:         atomic.LoadUint64(&m.committed),
		ImportsRejected:          atomic.LoadUint64(&m.rejected),
		ReportsFinished:          atomic.LoadUint64(&m.finished),
		ReportsFailed:            atomic.LoadUint64(&m.failed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
