// Package metrics provides Prometheus metrics for drivebox.
//
// Metrics are registered against an injected prometheus.Registerer so tests
// can use a private registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/drivebox/internal/errs"
)

const namespace = "drivebox"

// Metrics holds every collector drivebox exports.
type Metrics struct {
	storeOps        *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	archivesBuilt   *prometheus.CounterVec
	archiveEntries  prometheus.Counter
	uploadedObjects prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		storeOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Object store calls by operation and outcome kind",
			},
			[]string{"op", "kind"},
		),
		storeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Object store call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		archivesBuilt: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_archives_total",
				Help:      "Directory zip archives built, by status",
			},
			[]string{"status"},
		),
		archiveEntries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_archive_entries_total",
				Help:      "Files written into directory archives",
			},
		),
		uploadedObjects: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploaded_files_total",
				Help:      "Files stored through the upload operation",
			},
		),
	}
}

// ObserveStoreOp records one object store call. The outcome label is the
// errs kind of err, or "ok".
func (m *Metrics) ObserveStoreOp(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	kind := "ok"
	if err != nil {
		kind = errs.KindOf(err).String()
	}
	m.storeOps.WithLabelValues(op, kind).Inc()
	m.storeDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveArchive records a finished archive build with its entry count.
func (m *Metrics) ObserveArchive(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.archivesBuilt.WithLabelValues("failed").Inc()
		return
	}
	m.archivesBuilt.WithLabelValues("ok").Inc()
	m.archiveEntries.Add(float64(entries))
}

// ObserveUpload counts one stored file.
func (m *Metrics) ObserveUpload() {
	if m == nil {
		return
	}
	m.uploadedObjects.Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
