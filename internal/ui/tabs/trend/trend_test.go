package trend

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

type stubSource struct {
	metrics []models.TrendMetric
	err     error
}

func (s *stubSource) WeeklyTrend(_ context.Context, _ []models.Filter, metric models.TrendMetric) (*models.TrendSeries, error) {
	s.metrics = append(s.metrics, metric)
	if s.err != nil {
		return nil, s.err
	}
	return &models.TrendSeries{
		Metric: metric,
		Points: []models.TrendPoint{
			{Week: 9, Value: 50, Count: 3},
			{Week: 10, Value: 55, Count: 4},
			{Week: 11, Value: 66, Count: 2, Warnings: 1},
		},
		Comparison: "20% higher than last week",
	}, nil
}

func loaded(t *testing.T, src *stubSource) *Model {
	t.Helper()
	m := New(src, models.DefaultThresholds())
	m.SetSize(100, 40)
	m.Update(m.Init()())
	return m
}

func TestModel_Load(t *testing.T) {
	src := &stubSource{}
	m := loaded(t, src)

	if m.series == nil || len(m.series.Points) != 3 {
		t.Fatalf("series = %+v", m.series)
	}
	view := m.View()
	for _, want := range []string{"Weekly Trend: Loss Ratio", "Week 11: 66.0%", "20% higher than last week", "limit 100%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_NextMetric(t *testing.T) {
	src := &stubSource{}
	m := loaded(t, src)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if m.Metric() != models.TrendExpenseRatio {
		t.Fatalf("Metric = %v, want expense ratio", m.Metric())
	}
	if m.series != nil {
		t.Error("switching metric should clear the old series")
	}
	m.Update(cmd())
	if got := src.metrics[len(src.metrics)-1]; got != models.TrendExpenseRatio {
		t.Errorf("queried %v", got)
	}

	// A late response for the previous metric is ignored.
	m.Update(trendLoadedMsg{metric: models.TrendLossRatio, series: &models.TrendSeries{}})
	if m.series == nil || m.series.Metric != models.TrendExpenseRatio {
		t.Error("stale series applied")
	}
}

func TestModel_Limit(t *testing.T) {
	m := New(nil, models.DefaultThresholds())
	tests := []struct {
		metric models.TrendMetric
		want   *models.Range
	}{
		{models.TrendLossRatio, &models.Range{Min: 0, Max: 100}},
		{models.TrendExpenseRatio, &models.Range{Min: 0, Max: 50}},
		{models.TrendMarginalContributionRate, &models.Range{Min: -50, Max: 100}},
		{models.TrendCombinedRatio, nil},
		{models.TrendClaimFrequency, nil},
	}
	for _, tt := range tests {
		m.metric = tt.metric
		got := m.limit()
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("limit(%v) = %v, want %v", tt.metric, got, tt.want)
		}
	}
}

func TestModel_Error(t *testing.T) {
	m := New(&stubSource{err: errors.New("no weeks")}, models.DefaultThresholds())
	m.SetSize(80, 30)
	_, cmd := m.Update(m.load()())
	if cmd == nil {
		t.Error("error should notify")
	}
	if !strings.Contains(m.View(), "no weeks") {
		t.Error("view should show the error")
	}
}

func TestModel_EmptyStates(t *testing.T) {
	m := New(nil, models.DefaultThresholds())
	m.SetSize(80, 30)
	if m.Init() != nil {
		t.Error("Init without source should be nil")
	}
	if !strings.Contains(m.View(), "No weekly data") {
		t.Error("empty view missing")
	}
	if len(m.ShortHelp()) == 0 || len(m.FullHelp()) == 0 {
		t.Error("help bindings should not be empty")
	}
}

func TestModel_DatasetChanged(t *testing.T) {
	src := &stubSource{}
	m := loaded(t, src)
	_, cmd := m.Update(app.DatasetChangedMsg{Version: 3})
	if cmd == nil {
		t.Fatal("dataset change should reload")
	}
	m.Update(cmd())
	if len(src.metrics) != 2 {
		t.Errorf("WeeklyTrend calls = %d, want 2", len(src.metrics))
	}
}
