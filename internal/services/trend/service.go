// Package trend builds week-over-week series of derived ratios.
package trend

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// maxWeeks bounds the groups requested per series. ISO years have at most
// 53 weeks; the extra slot holds records without a week.
const maxWeeks = 54

// similarBand is the relative change, in percent, reported as "similar".
const similarBand = 10

// Analyzer runs grouped analyses.
type Analyzer interface {
	Analyze(ctx context.Context, filters []models.Filter, groupBy []models.Dimension, limit int) ([]models.MetricResult, error)
}

// Service computes trend series from cached analyses.
type Service struct {
	analyzer Analyzer
}

// New creates a trend service.
func New(analyzer Analyzer) *Service {
	return &Service{analyzer: analyzer}
}

// WeeklyTrend groups the filtered dataset by week number and returns the
// chosen metric per week. Records without a week are left out.
func (s *Service) WeeklyTrend(ctx context.Context, filters []models.Filter, metric models.TrendMetric) (*models.TrendSeries, error) {
	results, err := s.analyzer.Analyze(ctx, filters, []models.Dimension{models.DimWeekNumber}, maxWeeks)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze weekly trend: %w", err)
	}

	series := &models.TrendSeries{Metric: metric, Points: make([]models.TrendPoint, 0, len(results))}
	for _, r := range results {
		week, ok := r.Dimensions.Get(models.DimWeekNumber)
		if !ok || week.IsNull() {
			continue
		}
		series.Points = append(series.Points, models.TrendPoint{
			Week:     week.Int,
			Value:    metric.Value(r.Metrics),
			Count:    r.Count,
			Warnings: len(r.Warnings),
		})
	}
	slices.SortFunc(series.Points, func(a, b models.TrendPoint) int {
		switch {
		case a.Week < b.Week:
			return -1
		case a.Week > b.Week:
			return 1
		}
		return 0
	})

	if n := len(series.Points); n >= 2 {
		series.Comparison = Compare(series.Points[n-1].Value, series.Points[n-2].Value)
	} else {
		series.Comparison = Compare(0, 0)
	}
	logger.Debug("Weekly trend computed", "metric", metric.String(), "weeks", len(series.Points))
	return series, nil
}

// Compare describes current relative to the previous week's value.
func Compare(current, previous float64) string {
	if previous == 0 || math.IsNaN(previous) || math.IsNaN(current) {
		return "No prior week"
	}
	diff := ((current - previous) / math.Abs(previous)) * 100
	if math.Abs(diff) < similarBand {
		return "Similar to last week"
	} else if diff > 0 {
		return fmt.Sprintf("%.0f%% higher than last week", diff)
	}
	return fmt.Sprintf("%.0f%% lower than last week", -diff)
}
