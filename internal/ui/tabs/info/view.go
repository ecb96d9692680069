package info

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
	"github.com/j-veylop/policy-analytics-tui/internal/version"
)

const maxListedImports = 10

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		styles.TitleStyle.Render("Info"),
		m.renderConfigCard(),
		m.renderCacheCard(),
		m.renderImportsCard(),
		styles.HelpStyle.Render(version.Info()),
	}

	m.viewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, sections...))
	return lipgloss.NewStyle().Padding(0, 2).Render(m.viewport.View())
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 100)
}

func row(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func rangeString(r models.Range) string {
	return fmt.Sprintf("%g .. %g %%", r.Min, r.Max)
}

func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration")}

	if c := m.config; c != nil {
		th := c.Thresholds
		rows = append(rows,
			row("Database", c.DatabasePath),
			row("Data directory", c.DataDir),
			row("Thresholds file", c.ThresholdsPath),
			row("Log file", c.LogPath),
			row("Cache TTL", c.CacheTTL.String()),
			row("Cache capacity", fmt.Sprintf("%d entries / %d KiB", c.CacheMaxEntries, c.CacheMaxBytes>>10)),
			row("Aggregate workers", strconv.Itoa(c.AggregateWorkers)),
			row("Loss ratio range", rangeString(th.MaturedLossRatio)),
			row("Expense ratio range", rangeString(th.ExpenseRatio)),
			row("Variable cost range", rangeString(th.VariableCostRatio)),
			row("Contribution range", rangeString(th.MarginalContributionRate)),
		)
		if c.MetricsAddr != "" {
			rows = append(rows, row("Metrics", "http://"+c.MetricsAddr+"/metrics"))
		}
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderCacheCard() string {
	rows := []string{styles.CardTitleStyle.Render("Dataset & Caches")}

	stats := m.state.GetStats()
	if stats == nil {
		rows = append(rows, styles.HelpStyle.Render("No statistics yet"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows,
		row("Records", strconv.Itoa(stats.Records)),
		row("Snapshot version", strconv.FormatUint(stats.Version, 10)),
		row("Imports", strconv.Itoa(stats.Imports)),
	)
	for _, c := range stats.Caches {
		rows = append(rows, row("Cache "+c.Name, fmt.Sprintf("%d entries, %.1f KiB, hit rate %.0f%%, %d evicted, %d expired",
			c.EntryCount, float64(c.TotalSize)/1024, c.HitRate()*100, c.Evictions, c.Expirations)))
	}
	rows = append(rows, "", styles.HelpStyle.Render("Press 's' to refresh"))

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderImportsCard() string {
	rows := []string{styles.CardTitleStyle.Render("Recent Imports")}

	imports := m.state.GetImports()
	if len(imports) == 0 {
		rows = append(rows, styles.HelpStyle.Render("No files imported"))
	}
	for i, b := range imports {
		if i == maxListedImports {
			rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("... and %d more", len(imports)-i)))
			break
		}
		line := fmt.Sprintf("%s  %-28s %6d rows", b.ImportedAt.Local().Format("2006-01-02 15:04"), filepath.Base(b.SourcePath), b.RowCount)
		var issues []string
		if b.RejectedCount > 0 {
			issues = append(issues, fmt.Sprintf("%d rejected", b.RejectedCount))
		}
		if b.WarningCount > 0 {
			issues = append(issues, fmt.Sprintf("%d warnings", b.WarningCount))
		}
		if len(issues) > 0 {
			line += "  " + styles.WarningTextStyle.Render(strings.Join(issues, ", "))
		}
		rows = append(rows, line)
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
