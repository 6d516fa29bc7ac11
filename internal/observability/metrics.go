// Package observability exposes crawl metrics to Prometheus.
package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records crawl events on a private registry, so several crawls in
// one process (tests) never collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	pagesSkipped   *prometheus.CounterVec
	recordsEmitted prometheus.Counter
	recordsDropped prometheus.Counter
	frontierDepth  prometheus.Gauge

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmcrawl_pages_fetched_total",
			Help: "Pages fetched, by request tag and status class.",
		}, []string{"tag", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pharmcrawl_fetch_duration_seconds",
			Help:    "Histogram of page fetch durations.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"tag"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmcrawl_fetch_errors_total",
			Help: "Failed fetches, by request tag and whether the request was re-queued.",
		}, []string{"tag", "retried"}),
		pagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmcrawl_pages_skipped_total",
			Help: "Fetched pages that produced nothing, by request tag and reason.",
		}, []string{"tag", "reason"}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmcrawl_records_emitted_total",
			Help: "Product records that passed the pipeline.",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmcrawl_records_dropped_total",
			Help: "Product records dropped or rejected by the pipeline.",
		}),
		frontierDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pharmcrawl_frontier_depth",
			Help: "Requests waiting in the frontier.",
		}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.pagesFetched,
		m.fetchDuration,
		m.fetchErrors,
		m.pagesSkipped,
		m.recordsEmitted,
		m.recordsDropped,
		m.frontierDepth,
	)
	return m
}

func (m *Metrics) PageFetched(tag string, status int, d time.Duration) {
	m.pagesFetched.WithLabelValues(tag, classifyStatus(status)).Inc()
	m.fetchDuration.WithLabelValues(tag).Observe(d.Seconds())
}

func (m *Metrics) FetchFailed(tag string, retried bool) {
	m.fetchErrors.WithLabelValues(tag, strconv.FormatBool(retried)).Inc()
}

func (m *Metrics) PageSkipped(tag, reason string) {
	m.pagesSkipped.WithLabelValues(tag, reason).Inc()
}

func (m *Metrics) RecordEmitted() { m.recordsEmitted.Inc() }

func (m *Metrics) RecordDropped() { m.recordsDropped.Inc() }

func (m *Metrics) FrontierDepth(n int) { m.frontierDepth.Set(float64(n)) }

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics on port at path in the background.
// The caller shuts the returned server down.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}
