package trend

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/components"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

// maxTableWeeks bounds the weekly table under the chart.
const maxTableWeeks = 8

// View renders the trend tab.
func (m *Model) View() string {
	sections := []string{m.renderTitle()}

	switch {
	case m.errMsg != "":
		sections = append(sections, styles.ErrorTextStyle.Render(m.errMsg))
	case m.series == nil && m.loading:
		sections = append(sections, styles.HelpStyle.Render("Loading..."))
	case m.series == nil || len(m.series.Points) == 0:
		sections = append(sections, styles.HelpStyle.Render("No weekly data. Records need a week_number."))
	default:
		chartWidth := max(m.width-16, 20)
		chartHeight := max(m.height/2-4, 5)
		sections = append(sections,
			components.RenderTrendChart(m.series, m.limit(), chartWidth, chartHeight),
			"",
			m.renderComparison(),
			"",
			m.renderWeeks(),
		)
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))
	return lipgloss.NewStyle().Padding(0, 2).Render(m.viewport.View())
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Weekly Trend: " + m.metric.Label())
	return title + styles.HelpStyle.Render("  (m: next metric)")
}

// limit returns the plausible range of the plotted metric, if it has one.
func (m *Model) limit() *models.Range {
	th := m.thresholds
	switch m.metric {
	case models.TrendLossRatio:
		return &th.MaturedLossRatio
	case models.TrendExpenseRatio:
		return &th.ExpenseRatio
	case models.TrendVariableCostRatio:
		return &th.VariableCostRatio
	case models.TrendMarginalContributionRate:
		return &th.MarginalContributionRate
	default:
		return nil
	}
}

func (m *Model) renderComparison() string {
	latest, _ := m.series.Latest()
	value := components.FormatPercent(latest.Value)
	if r := m.limit(); r != nil {
		value = styles.GetRatioStyle(latest.Value, *r).Render(value)
	}
	spark := components.RenderSparkline(m.series.Values(), 24)
	return fmt.Sprintf("Week %d: %s  %s  %s", latest.Week, value,
		styles.SubTitleStyle.Render(m.series.Comparison), styles.HelpStyle.Render(spark))
}

func (m *Model) renderWeeks() string {
	points := m.series.Points
	if len(points) > maxTableWeeks {
		points = points[len(points)-maxTableWeeks:]
	}

	lines := []string{styles.HelpStyle.Render(fmt.Sprintf("%-6s %10s %8s %8s", "Week", "Value", "Records", "Issues"))}
	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]
		line := fmt.Sprintf("%-6d %10s %8d %8d", p.Week, components.FormatPercent(p.Value), p.Count, p.Warnings)
		if p.Warnings > 0 {
			line = styles.WarningTextStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
