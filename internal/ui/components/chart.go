// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

func clampChartSize(width, height int) (int, int) {
	return max(width, 20), max(height, 3)
}

// finite drops NaN and infinite points, which asciigraph cannot scale.
func finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	data = finite(data)
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChartSize(width, height)

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.Caption(caption),
	)
}

// RenderTrendChart plots a weekly series. When limit is set, its upper
// bound is drawn as a second flat series so breaches are visible.
func RenderTrendChart(series *models.TrendSeries, limit *models.Range, width, height int) string {
	if series == nil {
		return styles.HelpStyle.Render("No data available")
	}
	values := finite(series.Values())
	if len(values) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	width, height = clampChartSize(width, height)

	first, last := series.Points[0].Week, series.Points[len(series.Points)-1].Week
	caption := fmt.Sprintf("%s, weeks %d-%d", series.Metric.Label(), first, last)

	if limit == nil || len(values) < 2 {
		return RenderLineChart(values, width, height, caption)
	}

	bound := make([]float64, len(values))
	for i := range bound {
		bound[i] = limit.Max
	}

	graph := asciigraph.PlotMany([][]float64{values, bound},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
	)

	legend := RenderLegend([]LegendItem{
		{Label: series.Metric.Label(), Color: styles.ColorInfo},
		{Label: fmt.Sprintf("limit %.0f%%", limit.Max), Color: styles.ColorError},
	})
	return graph + "\n" + legend
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, math.Abs(v))
	}
	if maxVal == 0 {
		maxVal = 1
	}

	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}

	barWidth := max(width-labelWidth-12, 10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(label))

		n := max(int(math.Abs(v)/maxVal*float64(barWidth)), 0)
		bar := strings.Repeat("█", n)
		if v < 0 {
			bar = styles.ErrorTextStyle.Render(bar)
		}
		lines = append(lines, fmt.Sprintf("%s%s │%s %.1f", pad, label, bar, v))
	}

	return strings.Join(lines, "\n")
}

// RenderSparkline creates a compact inline sparkline chart scaled between
// the series minimum and maximum.
func RenderSparkline(values []float64, width int) string {
	values = finite(values)
	if len(values) == 0 || width <= 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := max(float64(len(values))/float64(width), 1)

	var b strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		v := values[int(float64(i)*step)]
		idx := int((v - lo) / span * float64(len(sparkChars)-1))
		b.WriteRune(sparkChars[min(max(idx, 0), len(sparkChars)-1)])
	}

	return b.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		box := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, box+" "+item.Label)
	}
	return strings.Join(parts, "  ")
}
