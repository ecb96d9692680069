package records

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/components"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

// View renders the records tab.
func (m *Model) View() string {
	var body string
	switch {
	case m.errMsg != "":
		body = styles.ErrorTextStyle.Render(m.errMsg)
	case m.current.Total == 0:
		body = styles.HelpStyle.Render("No records")
	default:
		body = m.table.View()
	}

	return lipgloss.NewStyle().Padding(0, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body),
	)
}

func (m *Model) renderHeader() string {
	order := "insertion order"
	if s := m.Sort(); s != nil {
		order = s.String()
	}
	p := m.current
	status := fmt.Sprintf("Page %d/%d · %d records · sorted by %s", m.page, max(p.TotalPages, 1), p.Total, order)
	return styles.SubTitleStyle.Render("Records") + "  " + styles.HelpStyle.Render(status)
}

func recordColumns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Snapshot", Width: 10},
		{Title: "Week", Width: 4},
		{Title: "Organization", Width: 14},
		{Title: "Business type", Width: 14},
		{Title: "Premium", Width: 10},
		{Title: "Policies", Width: 8},
		{Title: "Claims", Width: 6},
		{Title: "Paid", Width: 10},
	}
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	if extra := width - used; extra > 0 {
		cols[2].Width += extra / 2
		cols[3].Width += extra - extra/2
	}
	return cols
}

func recordRows(records []models.Record) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, table.Row{
			r.Dim(models.DimSnapshotDate).String(),
			r.Dim(models.DimWeekNumber).String(),
			r.Dim(models.DimThirdLevelOrganization).String(),
			r.Dim(models.DimBusinessTypeCategory).String(),
			components.FormatAmount(r.Amount(models.MeasureSignedPremium)),
			strconv.FormatFloat(r.Amount(models.MeasurePolicyCount), 'f', 0, 64),
			strconv.FormatFloat(r.Amount(models.MeasureClaimCaseCount), 'f', 0, 64),
			components.FormatAmount(r.Amount(models.MeasureReportedClaimPayment)),
		})
	}
	return rows
}
