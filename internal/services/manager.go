// Package services provides service orchestration for the TUI and CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/policy-analytics-tui/internal/cache"
	"github.com/j-veylop/policy-analytics-tui/internal/config"
	"github.com/j-veylop/policy-analytics-tui/internal/db"
	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services/dataset"
	"github.com/j-veylop/policy-analytics-tui/internal/services/derive"
	"github.com/j-veylop/policy-analytics-tui/internal/services/query"
	"github.com/j-veylop/policy-analytics-tui/internal/services/trend"
	"github.com/j-veylop/policy-analytics-tui/internal/telemetry"
)

type (
	// DatasetChangedEvent is emitted after the snapshot is reloaded.
	DatasetChangedEvent struct {
		Records int
		Version uint64
		Summary models.MetricResult
	}

	// ImportEvent is emitted when a file import finishes or is skipped.
	ImportEvent struct {
		Report *dataset.ImportReport
	}

	// AnomaliesEvent is emitted when the overall summary gains anomaly flags.
	AnomaliesEvent struct {
		New []string
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}

	// StatsEvent carries dataset and cache statistics.
	StatsEvent struct {
		Records int
		Version uint64
		Imports int
		Caches  []cache.Stats
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (DatasetChangedEvent) isServiceEvent() {}
func (ImportEvent) isServiceEvent()         {}
func (AnomaliesEvent) isServiceEvent()      {}
func (ErrorEvent) isServiceEvent()          {}
func (StatsEvent) isServiceEvent()          {}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	database    *db.DB
	dataset     *dataset.Service
	query       *query.Service
	trend       *trend.Service
	metrics     *telemetry.Metrics
	metricsSrv  *http.Server
	stopChan    chan struct{}
	closeOnce   sync.Once
	subscribers []chan<- ServiceEvent

	// anomalies seen on the previous summary; nil until the first one.
	anomalies map[string]bool
	notify    func(title, body string) error
}

// NewManager creates a new service manager. The data directory is not
// watched until StartWatching is called.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		stopChan: make(chan struct{}),
		metrics:  telemetry.New(),
		notify: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.dataset, err = dataset.New(m.database, cfg.DataDir)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	thresholds := cfg.Thresholds
	if thresholds == (models.Thresholds{}) {
		thresholds = models.DefaultThresholds()
	}
	catalogTTL := cfg.CatalogCacheTTL
	if catalogTTL <= 0 {
		catalogTTL = cache.DefaultCatalogTTL
	}
	results := cache.New[[]models.MetricResult](cache.Options{
		Name:       "query",
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
		MaxBytes:   cfg.CacheMaxBytes,
		Observer:   m.metrics,
	})
	catalog := cache.New[[]models.DimensionValue](cache.Options{
		Name:       "catalog",
		TTL:        catalogTTL,
		MaxEntries: cfg.CacheMaxEntries,
		MaxBytes:   cfg.CacheMaxBytes,
		Observer:   m.metrics,
	})
	m.query = query.New(m.dataset, derive.New(thresholds), results, catalog, query.Options{
		Workers:      cfg.AggregateWorkers,
		AnalyzeLimit: cfg.AnalyzeLimit,
		PageSize:     cfg.PageSize,
		Recorder:     m.metrics,
	})
	m.trend = trend.New(m.query)

	if cfg.MetricsAddr != "" {
		m.metricsSrv, err = m.metrics.Serve(cfg.MetricsAddr)
		if err != nil {
			logger.Warn("Metrics endpoint disabled", "error", err)
		}
	}

	go m.routeEvents()

	return m, nil
}

// StartWatching imports pending files from the data directory and starts
// watching it for changes.
func (m *Manager) StartWatching() error {
	if err := m.dataset.Watch(); err != nil {
		return err
	}
	go func() {
		if err := m.dataset.ScanDir(); err != nil {
			m.broadcast(ErrorEvent{Service: "dataset", Error: err})
		}
	}()
	return nil
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.dataset.Events():
			m.handleDatasetEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

// handleDatasetEvent converts and broadcasts dataset events.
func (m *Manager) handleDatasetEvent(event dataset.Event) {
	switch event.Type {
	case dataset.EventDatasetLoaded, dataset.EventDatasetChanged:
		m.refreshSummary()

	case dataset.EventImportCompleted:
		m.metrics.ObserveImport("completed")
		m.broadcast(ImportEvent{Report: event.Report})

	case dataset.EventImportSkipped:
		m.metrics.ObserveImport("skipped")
		m.broadcast(ImportEvent{Report: event.Report})

	case dataset.EventImportFailed:
		m.metrics.ObserveImport("failed")
		m.broadcast(ErrorEvent{Service: "import", Error: event.Error})

	case dataset.EventError:
		m.broadcast(ErrorEvent{Service: "dataset", Error: event.Error})
	}
}

func (m *Manager) refreshSummary() {
	snap := m.dataset.Snapshot()
	summary, err := m.query.Summary(context.Background(), nil)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "query", Error: err})
		return
	}
	m.metrics.SetDataset(snap.Len(), len(summary.Anomalies))
	m.checkAnomalies(summary.Anomalies)
	m.broadcast(DatasetChangedEvent{
		Records: snap.Len(),
		Version: snap.Version,
		Summary: summary,
	})
}

// checkAnomalies raises a notification for flags absent from the previous
// summary. The first summary only sets the baseline.
func (m *Manager) checkAnomalies(current []string) {
	m.mu.Lock()
	previous := m.anomalies
	m.anomalies = make(map[string]bool, len(current))
	for _, a := range current {
		m.anomalies[a] = true
	}
	m.mu.Unlock()

	if previous == nil {
		return
	}
	var fresh []string
	for _, a := range current {
		if !previous[a] {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		return
	}

	m.broadcast(AnomaliesEvent{New: fresh})
	if m.cfg.NotifyAnomalies && m.notify != nil {
		title := fmt.Sprintf("Policy Anomalies: %d new", len(fresh))
		if err := m.notify(title, strings.Join(fresh, "\n")); err != nil {
			logger.Debug("Notification failed", "error", err)
		}
	}
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, waitForEvent(ch)
}

// waitForEvent returns a tea.Cmd that waits for the next event.
func waitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return waitForEvent(ch)
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = slices.Delete(m.subscribers, i, i+1)
			close(ch)
			break
		}
	}
}

// Query returns one page of matching records.
func (m *Manager) Query(ctx context.Context, filters []models.Filter, sort *models.Sort, page, pageSize int) (models.Page[models.Record], error) {
	return m.query.Query(ctx, filters, sort, page, pageSize)
}

// Analyze returns grouped metric results.
func (m *Manager) Analyze(ctx context.Context, filters []models.Filter, groupBy []models.Dimension, limit int) ([]models.MetricResult, error) {
	return m.query.Analyze(ctx, filters, groupBy, limit)
}

// Summary returns the metrics of the whole filtered dataset.
func (m *Manager) Summary(ctx context.Context, filters []models.Filter) (models.MetricResult, error) {
	return m.query.Summary(ctx, filters)
}

// WeeklyTrend returns a metric series by week number.
func (m *Manager) WeeklyTrend(ctx context.Context, filters []models.Filter, metric models.TrendMetric) (*models.TrendSeries, error) {
	return m.trend.WeeklyTrend(ctx, filters, metric)
}

// ImportFile imports one CSV file.
func (m *Manager) ImportFile(path string) (*dataset.ImportReport, error) {
	return m.dataset.ImportFile(path)
}

// Clear removes every stored record and compacts the database.
func (m *Manager) Clear() error {
	if err := m.dataset.Clear(); err != nil {
		return err
	}
	m.compact()
	return nil
}

// DeleteImport removes one import batch and its records.
func (m *Manager) DeleteImport(id string) error {
	if err := m.dataset.DeleteImport(id); err != nil {
		return fmt.Errorf("failed to delete import %s: %w", id, err)
	}
	m.compact()
	return nil
}

// compact reclaims disk space after bulk deletes. Failure only costs space.
func (m *Manager) compact() {
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("Vacuum failed", "error", err)
	}
}

// Imports lists stored import batches.
func (m *Manager) Imports() ([]models.ImportBatch, error) {
	return m.dataset.Imports()
}

// GetStats returns dataset and cache statistics.
func (m *Manager) GetStats() StatsEvent {
	snap := m.dataset.Snapshot()
	stats := StatsEvent{
		Records: snap.Len(),
		Version: snap.Version,
		Caches:  m.query.CacheStats(),
	}
	if imports, err := m.dataset.Imports(); err == nil {
		stats.Imports = len(imports)
	} else {
		logger.Warn("failed to list imports", "error", err)
	}
	return stats
}

// Config returns the active configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Dataset returns the dataset service.
func (m *Manager) Dataset() *dataset.Service {
	return m.dataset
}

// QueryService returns the query service.
func (m *Manager) QueryService() *query.Service {
	return m.query
}

// Trend returns the trend service.
func (m *Manager) Trend() *trend.Service {
	return m.trend
}

// Metrics returns the telemetry collectors.
func (m *Manager) Metrics() *telemetry.Metrics {
	return m.metrics
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		if m.stopChan != nil {
			close(m.stopChan)
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.metricsSrv != nil {
			if err := m.metricsSrv.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if m.dataset != nil {
			if err := m.dataset.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// InitialState returns the initial state of all services for TUI initialization.
func (m *Manager) InitialState() (models.MetricResult, StatsEvent) {
	summary, err := m.query.Summary(context.Background(), nil)
	if err != nil {
		logger.Warn("failed to compute summary", "error", err)
	}
	return summary, m.GetStats()
}
