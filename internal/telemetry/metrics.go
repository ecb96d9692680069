// Package telemetry exposes cache and analysis activity as Prometheus metrics.
package telemetry

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/policy-analytics-tui/internal/logger"
)

const namespace = "policydash"

// Metrics holds the collectors on a private registry so several instances
// can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheEvictions  *prometheus.CounterVec
	CacheEntries    *prometheus.GaugeVec
	CacheBytes      *prometheus.GaugeVec
	AnalyzeDuration *prometheus.HistogramVec
	ImportsTotal    *prometheus.CounterVec
	DatasetRecords  prometheus.Gauge
	AnomalyGroups   prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that returned a live entry",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no live entry",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed by expiry or size pressure",
		}, []string{"cache", "reason"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held",
		}, []string{"cache"}),
		CacheBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bytes",
			Help:      "Approximate serialized size of held entries",
		}, []string{"cache"}),
		AnalyzeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "analyze_duration_seconds",
			Help:      "Time spent answering analysis requests",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"cached"}),
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "imports_total",
			Help:      "File imports by outcome",
		}, []string{"status"}),
		DatasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "records",
			Help:      "Records in the loaded snapshot",
		}),
		AnomalyGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "anomalies",
			Help:      "Anomaly flags on the overall summary",
		}),
	}
	m.registry.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheEntries,
		m.CacheBytes,
		m.AnalyzeDuration,
		m.ImportsTotal,
		m.DatasetRecords,
		m.AnomalyGroups,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Hit implements cache.Observer.
func (m *Metrics) Hit(cache string) { m.CacheHits.WithLabelValues(cache).Inc() }

// Miss implements cache.Observer.
func (m *Metrics) Miss(cache string) { m.CacheMisses.WithLabelValues(cache).Inc() }

// Evicted implements cache.Observer.
func (m *Metrics) Evicted(cache, reason string) {
	m.CacheEvictions.WithLabelValues(cache, reason).Inc()
}

// Resized implements cache.Observer.
func (m *Metrics) Resized(cache string, entries, bytes int) {
	m.CacheEntries.WithLabelValues(cache).Set(float64(entries))
	m.CacheBytes.WithLabelValues(cache).Set(float64(bytes))
}

// ObserveAnalyze implements query.Recorder.
func (m *Metrics) ObserveAnalyze(d time.Duration, cached bool) {
	label := "false"
	if cached {
		label = "true"
	}
	m.AnalyzeDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveImport counts an import outcome: completed, skipped or failed.
func (m *Metrics) ObserveImport(status string) {
	m.ImportsTotal.WithLabelValues(status).Inc()
}

// SetDataset records the size of the loaded snapshot and its anomaly count.
func (m *Metrics) SetDataset(records, anomalies int) {
	m.DatasetRecords.Set(float64(records))
	m.AnomalyGroups.Set(float64(anomalies))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr. The listener is
// bound before returning so address errors surface immediately.
func (m *Metrics) Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", srv.Addr)
	return srv, nil
}
