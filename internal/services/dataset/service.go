// Package dataset owns the in-memory record snapshot, keeps it in sync with
// the database and imports CSV files dropped into the data directory.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/policy-analytics-tui/internal/ingest"
	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// Store persists records and import batches.
type Store interface {
	ReplaceImport(batch *models.ImportBatch, records []models.Record) error
	LoadRecords() ([]models.Record, error)
	LastImportFor(path string) (*models.ImportBatch, error)
	ListImports() ([]models.ImportBatch, error)
	DeleteImport(id string) error
	ClearRecords() error
}

// Event represents a dataset service event.
type Event struct {
	Type   EventType
	Error  error
	Report *ImportReport
}

// EventType defines the type of dataset event.
type EventType int

const (
	EventDatasetLoaded EventType = iota
	EventDatasetChanged
	EventImportCompleted
	EventImportSkipped
	EventImportFailed
	EventError
)

// ImportReport summarizes one import.
type ImportReport struct {
	Batch    models.ImportBatch
	Rejected []ingest.RowError
	Warnings []ingest.RowError
	// Skipped is set when the file content matches the previous import.
	Skipped bool
}

const debounceInterval = 250 * time.Millisecond

// Service manages the dataset snapshot with directory watching and change
// notifications.
type Service struct {
	mu       sync.RWMutex
	snapshot models.Snapshot

	importMu sync.Mutex
	store    Store
	dataDir  string
	now      func() time.Time

	watcher   *fsnotify.Watcher
	eventChan chan Event
	stopChan  chan struct{}
	closeOnce sync.Once

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

// New creates the service and loads the stored records.
func New(store Store, dataDir string) (*Service, error) {
	s := &Service{
		store:     store,
		dataDir:   dataDir,
		now:       time.Now,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}
	if err := s.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	s.sendEvent(Event{Type: EventDatasetLoaded})
	return s, nil
}

// Events returns the event channel for subscribing to dataset changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Snapshot returns the current immutable view of the dataset.
func (s *Service) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Reload replaces the snapshot with the stored records.
func (s *Service) Reload() error {
	records, err := s.store.LoadRecords()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = models.Snapshot{
		Records:  records,
		Version:  s.snapshot.Version + 1,
		LoadedAt: s.now(),
	}
	s.mu.Unlock()
	return nil
}

// Imports lists stored import batches, newest first.
func (s *Service) Imports() ([]models.ImportBatch, error) {
	return s.store.ListImports()
}

// ImportFile parses a CSV file and stores its valid rows, replacing any
// earlier import of the same path. Unchanged files are skipped.
func (s *Service) ImportFile(path string) (*ImportReport, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve import path: %w", err)
	}
	sum, err := checksum(abs)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.LastImportFor(abs)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Checksum == sum {
		report := &ImportReport{Batch: *prev, Skipped: true}
		logger.Debug("Import skipped, file unchanged", "path", abs)
		s.sendEvent(Event{Type: EventImportSkipped, Report: report})
		return report, nil
	}

	res, err := ingest.ParseFile(abs)
	if err != nil {
		return nil, err
	}
	batch := models.ImportBatch{
		SourcePath:    abs,
		Checksum:      sum,
		RejectedCount: len(res.Rejected),
		WarningCount:  len(res.Warnings),
		ImportedAt:    s.now(),
	}
	if err := s.store.ReplaceImport(&batch, res.Records); err != nil {
		return nil, fmt.Errorf("failed to store import: %w", err)
	}
	if err := s.Reload(); err != nil {
		return nil, fmt.Errorf("failed to reload dataset: %w", err)
	}

	report := &ImportReport{Batch: batch, Rejected: res.Rejected, Warnings: res.Warnings}
	logger.Info("Imported file",
		"path", abs,
		"id", batch.ID,
		"rows", batch.RowCount,
		"rejected", batch.RejectedCount,
		"warnings", batch.WarningCount,
	)
	s.sendEvent(Event{Type: EventImportCompleted, Report: report})
	s.sendEvent(Event{Type: EventDatasetChanged})
	return report, nil
}

// DeleteImport removes one batch and reloads.
func (s *Service) DeleteImport(id string) error {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	if err := s.store.DeleteImport(id); err != nil {
		return err
	}
	if err := s.Reload(); err != nil {
		return err
	}
	s.sendEvent(Event{Type: EventDatasetChanged})
	return nil
}

// Clear removes every record.
func (s *Service) Clear() error {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	if err := s.store.ClearRecords(); err != nil {
		return err
	}
	if err := s.Reload(); err != nil {
		return err
	}
	s.sendEvent(Event{Type: EventDatasetChanged})
	return nil
}

// ScanDir imports every CSV file in the data directory. Files whose content
// was already imported are skipped.
func (s *Service) ScanDir() error {
	if s.dataDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		s.importAndReport(filepath.Join(s.dataDir, e.Name()))
	}
	return nil
}

// Watch starts watching the data directory for new or changed CSV files.
func (s *Service) Watch() error {
	if s.dataDir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dataDir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return fmt.Errorf("failed to watch %s: %w", s.dataDir, err)
	}
	s.watcher = watcher
	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with per-file debouncing.
func (s *Service) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isCSV(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.debounce(event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) debounce(path string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(debounceInterval, func() {
		s.timerMu.Lock()
		delete(s.timers, path)
		s.timerMu.Unlock()

		select {
		case <-s.stopChan:
			return
		default:
		}
		s.importAndReport(path)
	})
}

func (s *Service) importAndReport(path string) {
	if _, err := s.ImportFile(path); err != nil {
		logger.Warn("Import failed", "path", path, "error", err)
		s.sendEvent(Event{Type: EventImportFailed, Error: err,
			Report: &ImportReport{Batch: models.ImportBatch{SourcePath: path}}})
	}
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the directory watcher and pending imports.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.timerMu.Lock()
		for _, t := range s.timers {
			t.Stop()
		}
		s.timerMu.Unlock()
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash import file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
