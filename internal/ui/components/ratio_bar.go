package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

// RatioBar renders a percentage ratio as a bar scaled to its plausible range.
type RatioBar struct {
	progress   progress.Model
	labelWidth int
}

// NewRatioBar creates a ratio bar that shades from green to red.
func NewRatioBar() RatioBar {
	return RatioBar{
		progress: progress.New(
			progress.WithScaledGradient("#51cf66", "#ff6b6b"),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		labelWidth: 24,
	}
}

// Fraction maps v onto [0,1] within r. Values outside r are clamped and
// NaN maps to 0.
func Fraction(v float64, r models.Range) float64 {
	if math.IsNaN(v) || r.Max <= r.Min {
		return 0
	}
	return min(max((v-r.Min)/(r.Max-r.Min), 0), 1)
}

// View renders "label [bar] value%" within width columns.
func (b RatioBar) View(label string, v float64, r models.Range, width int) string {
	b.progress.Width = max(width-b.labelWidth-10, 10)
	bar := b.progress.ViewAs(Fraction(v, r))

	value := "n/a"
	if !math.IsNaN(v) {
		value = fmt.Sprintf("%.1f%%", v)
	}
	valueStr := styles.GetRatioStyle(v, r).Width(8).Align(lipgloss.Right).Render(value)
	labelStr := styles.LabelStyle.Width(b.labelWidth).Render(label)

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", valueStr)
}

// RenderScore renders a quality score with a short gauge.
func RenderScore(score int) string {
	const cells = 10
	filled := min(max(score, 0), 100) * cells / 100
	gauge := ""
	for i := range cells {
		if i < filled {
			gauge += "●"
		} else {
			gauge += "○"
		}
	}
	return styles.GetScoreStyle(score).Render(fmt.Sprintf("%s %d/100", gauge, score))
}
