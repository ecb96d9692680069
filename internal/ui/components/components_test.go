package components

import (
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

func TestSpinner_Methods(t *testing.T) {
	s := NewSpinner("Init")

	s.SetLabel("Loading")
	if s.Label() != "Loading" {
		t.Errorf("Label = %s, want Loading", s.Label())
	}
	if s.View() == "" {
		t.Error("View returned empty")
	}
	if !strings.Contains(s.ViewWithLabel(), "Loading") {
		t.Error("ViewWithLabel should contain the label")
	}
	if s.Init() == nil {
		t.Error("Init should return command")
	}
	if _, cmd := s.Update(spinner.TickMsg{}); cmd == nil {
		t.Error("Update should return command for tick")
	}
	if s.Tick() == nil {
		t.Error("Tick should return command")
	}
	if !strings.Contains(s.Centered(30, 5), "Loading") {
		t.Error("Centered should contain the label")
	}
}

func TestRenderLineChart(t *testing.T) {
	if s := RenderLineChart([]float64{1, 2, 3, 4}, 20, 5, "Test"); !strings.Contains(s, "Test") {
		t.Errorf("RenderLineChart missing caption:\n%s", s)
	}
	if s := RenderLineChart([]float64{math.NaN()}, 20, 5, "Test"); !strings.Contains(s, "No data") {
		t.Errorf("all-NaN series should render the empty state, got %q", s)
	}
}

func trendSeries(values ...float64) *models.TrendSeries {
	s := &models.TrendSeries{Metric: models.TrendLossRatio}
	for i, v := range values {
		s.Points = append(s.Points, models.TrendPoint{Week: int64(9 + i), Value: v, Count: 1})
	}
	return s
}

func TestRenderTrendChart(t *testing.T) {
	tests := []struct {
		name   string
		series *models.TrendSeries
		limit  *models.Range
		want   []string
	}{
		{
			name:   "nil series",
			series: nil,
			want:   []string{"No data"},
		},
		{
			name:   "empty series",
			series: trendSeries(),
			want:   []string{"No data"},
		},
		{
			name:   "single series",
			series: trendSeries(50, 60, 55),
			want:   []string{"weeks 9-11"},
		},
		{
			name:   "with limit",
			series: trendSeries(50, 60, 120),
			limit:  &models.Range{Min: 0, Max: 100},
			want:   []string{"weeks 9-11", "limit 100%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderTrendChart(tt.series, tt.limit, 40, 6)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("chart missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestRenderBarChart(t *testing.T) {
	s := RenderBarChart([]float64{10, -20}, []string{"A", "Branch B"}, 40)
	lines := strings.Split(s, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[1], "-20.0") {
		t.Errorf("negative value not rendered: %q", lines[1])
	}
	if RenderBarChart(nil, nil, 40) != "" {
		t.Error("empty input should render nothing")
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{1, 2, 3}, 10); got != "▁▄█" {
		t.Errorf("RenderSparkline = %q, want ▁▄█", got)
	}
	if got := RenderSparkline([]float64{5, 5}, 10); got != "▁▁" {
		t.Errorf("flat series = %q, want ▁▁", got)
	}
	if RenderSparkline(nil, 10) != "" {
		t.Error("empty series should render nothing")
	}
}

func TestRenderLegend(t *testing.T) {
	s := RenderLegend([]LegendItem{{Label: "Loss", Color: lipgloss.Color("#ffffff")}})
	if !strings.Contains(s, "Loss") {
		t.Errorf("RenderLegend = %q", s)
	}
}

func TestFraction(t *testing.T) {
	r := models.Range{Min: -50, Max: 100}
	tests := []struct {
		v    float64
		want float64
	}{
		{-50, 0},
		{25, 0.5},
		{100, 1},
		{150, 1},
		{-80, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Fraction(tt.v, r); got != tt.want {
			t.Errorf("Fraction(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
	if Fraction(5, models.Range{Min: 1, Max: 1}) != 0 {
		t.Error("degenerate range should map to 0")
	}
}

func TestRatioBar_View(t *testing.T) {
	bar := NewRatioBar()
	out := bar.View("Loss ratio", 53.3, models.Range{Min: 0, Max: 100}, 80)
	if !strings.Contains(out, "Loss ratio") || !strings.Contains(out, "53.3%") {
		t.Errorf("View = %q", out)
	}
	if out := bar.View("Loss ratio", math.NaN(), models.Range{Min: 0, Max: 100}, 80); !strings.Contains(out, "n/a") {
		t.Errorf("NaN should render n/a, got %q", out)
	}
}

func TestRenderScore(t *testing.T) {
	if got := RenderScore(80); !strings.Contains(got, "●●●●●●●●○○ 80/100") {
		t.Errorf("RenderScore(80) = %q", got)
	}
	if got := RenderScore(0); !strings.Contains(got, "○○○○○○○○○○ 0/100") {
		t.Errorf("RenderScore(0) = %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0"},
		{950.4, "950"},
		{12500, "12.5K"},
		{-2500000, "-2.50M"},
		{312000000, "3.12亿"},
		{math.NaN(), "n/a"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.v); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(53.333); got != "53.3%" {
		t.Errorf("FormatPercent = %q", got)
	}
	if got := FormatPercent(math.Inf(1)); got != "n/a" {
		t.Errorf("FormatPercent(Inf) = %q", got)
	}
}
