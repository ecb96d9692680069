// Package query is the read-side facade over the loaded dataset: filtered,
// sorted and paginated record listings, and cached grouped analyses.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/j-veylop/policy-analytics-tui/internal/cache"
	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services/aggregate"
	"github.com/j-veylop/policy-analytics-tui/internal/services/derive"
)

// Defaults applied when a request leaves a size unset.
const (
	DefaultAnalyzeLimit = 20
	DefaultPageSize     = 50
	MaxPageSize         = 1000
)

// Source provides the current dataset snapshot.
type Source interface {
	Snapshot() models.Snapshot
}

// Recorder observes analysis timings.
type Recorder interface {
	ObserveAnalyze(d time.Duration, cached bool)
}

// Options configures a Service.
type Options struct {
	// Workers above 1 enable partitioned aggregation.
	Workers      int
	AnalyzeLimit int
	PageSize     int
	Recorder     Recorder
}

// Service answers record and analysis queries. Caches are injected so their
// lifetime and limits are owned by the caller.
type Service struct {
	source  Source
	deriver *derive.Deriver
	results *cache.Cache[[]models.MetricResult]
	catalog *cache.Cache[[]models.DimensionValue]
	opts    Options

	mu      sync.Mutex
	version uint64
}

// New creates a query service.
func New(source Source, deriver *derive.Deriver, results *cache.Cache[[]models.MetricResult],
	catalog *cache.Cache[[]models.DimensionValue], opts Options) *Service {
	if opts.AnalyzeLimit <= 0 {
		opts.AnalyzeLimit = DefaultAnalyzeLimit
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Service{
		source:  source,
		deriver: deriver,
		results: results,
		catalog: catalog,
		opts:    opts,
	}
}

// DefaultPageSize returns the configured page size.
func (s *Service) DefaultPageSize() int { return s.opts.PageSize }

// DefaultAnalyzeLimit returns the configured analysis limit.
func (s *Service) DefaultAnalyzeLimit() int { return s.opts.AnalyzeLimit }

// Invalidate drops every cached result.
func (s *Service) Invalidate() {
	s.results.Clear()
	s.catalog.Clear()
}

// CacheStats returns the stats of the result and catalog caches.
func (s *Service) CacheStats() []cache.Stats {
	return []cache.Stats{s.results.Stats(), s.catalog.Stats()}
}

// snapshot returns the current dataset and clears caches if it changed
// since the previous request.
func (s *Service) snapshot() models.Snapshot {
	snap := s.source.Snapshot()
	s.mu.Lock()
	changed := snap.Version != s.version
	s.version = snap.Version
	s.mu.Unlock()
	if changed {
		logger.Debug("Dataset changed, dropping cached results", "version", snap.Version)
		s.Invalidate()
	}
	return snap
}

// Query returns one page of the records matching filters, ordered by sort.
// Pages are 1-based; a page past the end returns no data with correct totals.
// A zero pageSize selects the configured default.
func (s *Service) Query(ctx context.Context, filters []models.Filter, sort *models.Sort, page, pageSize int) (models.Page[models.Record], error) {
	var empty models.Page[models.Record]
	if page < 1 {
		return empty, fmt.Errorf("%w: page %d must be at least 1", ErrInvalidPage, page)
	}
	if pageSize == 0 {
		pageSize = s.opts.PageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return empty, fmt.Errorf("%w: page size %d must be between 1 and %d", ErrInvalidPage, pageSize, MaxPageSize)
	}
	filters, err := canonicalFilters(filters)
	if err != nil {
		return empty, err
	}
	if err := canonicalSort(sort); err != nil {
		return empty, err
	}
	if err := ctx.Err(); err != nil {
		return empty, err
	}

	matched := filterRecords(s.snapshot().Records, filters)
	if sort != nil {
		matched = sortRecords(matched, *sort)
	}

	total := len(matched)
	result := models.Page[models.Record]{
		Data:       []models.Record{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start < total {
		end := min(start+pageSize, total)
		result.Data = slices.Clone(matched[start:end])
	}
	return result, nil
}

// Analyze filters the dataset, groups it by groupBy, derives metrics for each
// group and returns the largest groups by member count. Ties keep first-seen
// order. Results are cached by the canonical request.
func (s *Service) Analyze(ctx context.Context, filters []models.Filter, groupBy []models.Dimension, limit int) ([]models.MetricResult, error) {
	start := time.Now()
	if limit <= 0 {
		limit = s.opts.AnalyzeLimit
	}
	filters, err := canonicalFilters(filters)
	if err != nil {
		return nil, err
	}
	groupBy, err = canonicalGroupBy(groupBy)
	if err != nil {
		return nil, err
	}

	snap := s.snapshot()
	key, err := cache.Key("analyze", newCacheParams(snap.Version, filters, groupBy, limit))
	if err != nil {
		return nil, err
	}
	if cached, ok := s.results.Get(key); ok {
		s.observe(start, true)
		return cloneResults(cached), nil
	}

	matched := filterRecords(snap.Records, filters)
	groups, err := aggregate.Parallel(ctx, matched, groupBy, s.opts.Workers)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(groups, func(a, b models.AggregatedGroup) int {
		return b.Count - a.Count
	})
	if len(groups) > limit {
		groups = groups[:limit]
	}
	results := s.deriver.DeriveAll(groups)

	if err := s.results.Set(key, results); err != nil {
		if errors.Is(err, cache.ErrEntryTooLarge) {
			logger.Debug("Analysis result too large to cache", "groups", len(results))
		} else {
			logger.Warn("Failed to cache analysis result", "error", err)
		}
	}
	s.observe(start, false)
	return cloneResults(results), nil
}

// cloneResults copies cached results so callers cannot modify the cache.
func cloneResults(results []models.MetricResult) []models.MetricResult {
	out := make([]models.MetricResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	return out
}

// Summary analyzes the filtered dataset as a single group. With no matching
// records the result is derived from an empty group.
func (s *Service) Summary(ctx context.Context, filters []models.Filter) (models.MetricResult, error) {
	results, err := s.Analyze(ctx, filters, nil, 1)
	if err != nil {
		return models.MetricResult{}, err
	}
	if len(results) == 0 {
		return s.deriver.Derive(models.AggregatedGroup{Dimensions: models.DimensionMap{}}), nil
	}
	return results[0], nil
}

// Catalog returns the distinct values of a dimension in sorted order.
func (s *Service) Catalog(d models.Dimension) ([]models.DimensionValue, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: dimension #%d", ErrUnknownField, d)
	}
	snap := s.snapshot()
	key, err := cache.Key("catalog", []any{snap.Version, d.String()})
	if err != nil {
		return nil, err
	}
	if cached, ok := s.catalog.Get(key); ok {
		return slices.Clone(cached), nil
	}

	seen := make(map[models.DimensionValue]struct{})
	values := []models.DimensionValue{}
	for i := range snap.Records {
		v := snap.Records[i].Dims[d]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	slices.SortFunc(values, models.CompareValues)

	if err := s.catalog.Set(key, values); err != nil {
		logger.Debug("Catalog not cached", "dimension", d.String(), "error", err)
	}
	return slices.Clone(values), nil
}

func (s *Service) observe(start time.Time, cached bool) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveAnalyze(time.Since(start), cached)
	}
}

// filterRecords returns the records matching every filter. With no filters
// the input slice is returned as is.
func filterRecords(records []models.Record, filters []models.Filter) []models.Record {
	if len(filters) == 0 {
		return records
	}
	out := make([]models.Record, 0, len(records)/4)
	for i := range records {
		if matchesAll(&records[i], filters) {
			out = append(out, records[i])
		}
	}
	return out
}

func matchesAll(r *models.Record, filters []models.Filter) bool {
	for _, f := range filters {
		if !f.Matches(r) {
			return false
		}
	}
	return true
}

// sortRecords returns a stably sorted copy. Nulls sort first ascending.
func sortRecords(records []models.Record, s models.Sort) []models.Record {
	out := slices.Clone(records)
	cmp := func(a, b *models.Record) int {
		if s.Field.IsMeasure {
			x, y := a.Amounts[s.Field.Measure], b.Amounts[s.Field.Measure]
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
		return models.CompareValues(a.Dims[s.Field.Dimension], b.Dims[s.Field.Dimension])
	}
	slices.SortStableFunc(out, func(a, b models.Record) int {
		c := cmp(&a, &b)
		if s.Direction == models.SortDesc {
			return -c
		}
		return c
	})
	return out
}
