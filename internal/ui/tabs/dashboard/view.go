package dashboard

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/components"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

// View renders the dashboard.
func (m *Model) View() string {
	if m.state.IsInitialLoading() {
		return m.spinner.Centered(m.width, m.height)
	}

	summary := m.state.GetSummary()
	if summary == nil || summary.Count == 0 {
		return m.renderEmpty()
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.renderKPIs(summary), "  ", m.renderQuality(summary))
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Portfolio Overview"),
		top,
		m.renderRatios(summary),
		m.renderGroups(),
	)

	m.viewport.SetContent(content)
	return lipgloss.NewStyle().Padding(0, 2).Render(m.viewport.View())
}

func (m *Model) renderEmpty() string {
	msg := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("No policy data"),
		styles.HelpStyle.Render("Drop CSV exports into the data directory or run `policydash import <file>`"),
	)
	return styles.CenterBoth(msg, m.width, m.height)
}

func kv(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func (m *Model) renderKPIs(s *models.MetricResult) string {
	t := s.Totals
	rows := []string{
		styles.CardTitleStyle.Render("Totals"),
		kv("Signed premium", components.FormatAmount(t.Get(models.MeasureSignedPremium))),
		kv("Matured premium", components.FormatAmount(t.Get(models.MeasureMaturedPremium))),
		kv("Policies", strconv.FormatFloat(t.Get(models.MeasurePolicyCount), 'f', 0, 64)),
		kv("Claim cases", strconv.FormatFloat(t.Get(models.MeasureClaimCaseCount), 'f', 0, 64)),
		kv("Reported claims", components.FormatAmount(t.Get(models.MeasureReportedClaimPayment))),
		kv("Avg premium/policy", components.FormatAmount(s.Metrics.AveragePremiumPerPolicy)),
		kv("Records", strconv.Itoa(s.Count)),
	}
	return styles.CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderQuality(s *models.MetricResult) string {
	rows := []string{
		styles.CardTitleStyle.Render("Data Quality"),
		components.RenderScore(s.QualityScore),
		"",
	}
	if len(s.Anomalies) == 0 && len(s.Warnings) == 0 {
		rows = append(rows, styles.SuccessTextStyle.Render("✓ no anomalies"))
	}
	for _, a := range s.Anomalies {
		rows = append(rows, styles.ErrorTextStyle.Render("▲ "+a))
	}
	for _, w := range s.Warnings {
		rows = append(rows, styles.WarningTextStyle.Render("! "+w))
	}
	return styles.CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderRatios(s *models.MetricResult) string {
	width := max(m.width-10, 50)
	d, th := s.Metrics, m.thresholds
	rows := []string{
		styles.CardTitleStyle.Render("Ratios"),
		m.ratioBar.View("Matured loss ratio", d.MaturedLossRatio, th.MaturedLossRatio, width),
		m.ratioBar.View("Expense ratio", d.ExpenseRatio, th.ExpenseRatio, width),
		m.ratioBar.View("Variable cost ratio", d.VariableCostRatio, th.VariableCostRatio, width),
		m.ratioBar.View("Marginal contribution", d.MarginalContributionRate, th.MarginalContributionRate, width),
		kv("Combined ratio", components.FormatPercent(d.CombinedRatio)) + "   " +
			kv("Claim frequency", components.FormatPercent(d.MaturedClaimFrequency)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderGroups() string {
	header := styles.SubTitleStyle.Render("By " + m.Dimension().String())
	hint := styles.HelpStyle.Render("  (d: next dimension)")

	var body string
	switch {
	case m.errMsg != "":
		body = styles.ErrorTextStyle.Render(m.errMsg)
	case m.loading && len(m.groups) == 0:
		body = styles.HelpStyle.Render("Analyzing...")
	case len(m.groups) == 0:
		body = styles.HelpStyle.Render("No groups")
	default:
		body = m.table.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, "", header+hint, body)
}

func groupColumns(width int) []table.Column {
	const fixed = 10 + 10 + 8 + 8 + 8 + 6
	return []table.Column{
		{Title: "Group", Width: max(width-fixed-14, 12)},
		{Title: "Premium", Width: 10},
		{Title: "Policies", Width: 10},
		{Title: "Loss", Width: 8},
		{Title: "Expense", Width: 8},
		{Title: "Comb.", Width: 8},
		{Title: "Score", Width: 6},
	}
}

func groupRows(results []models.MetricResult) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for i := range results {
		r := &results[i]
		label := r.Dimensions.Label()
		if len(r.Anomalies) > 0 {
			label = "▲ " + label
		}
		rows = append(rows, table.Row{
			label,
			components.FormatAmount(r.Totals.Get(models.MeasureSignedPremium)),
			strconv.FormatFloat(r.Totals.Get(models.MeasurePolicyCount), 'f', 0, 64),
			components.FormatPercent(r.Metrics.MaturedLossRatio),
			components.FormatPercent(r.Metrics.ExpenseRatio),
			components.FormatPercent(r.Metrics.CombinedRatio),
			fmt.Sprint(r.QualityScore),
		})
	}
	return rows
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = styles.TableSelectedStyle
	return s
}
