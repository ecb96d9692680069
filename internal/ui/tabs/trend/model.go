// Package trend provides the weekly trend tab.
package trend

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

const trendTimeout = 10 * time.Second

// Source computes weekly series.
type Source interface {
	WeeklyTrend(ctx context.Context, filters []models.Filter, metric models.TrendMetric) (*models.TrendSeries, error)
}

type keyMap struct {
	NextMetric key.Binding
	Refresh    key.Binding
	Up         key.Binding
	Down       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextMetric: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "next metric")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
	}
}

type trendLoadedMsg struct {
	metric models.TrendMetric
	series *models.TrendSeries
	err    error
}

// Model represents the trend tab state.
type Model struct {
	source     Source
	thresholds models.Thresholds
	keys       keyMap
	viewport   viewport.Model

	metric  models.TrendMetric
	series  *models.TrendSeries
	loading bool
	errMsg  string

	width  int
	height int
}

// New creates a trend tab.
func New(source Source, thresholds models.Thresholds) *Model {
	return &Model{
		source:     source,
		thresholds: thresholds,
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		metric:     models.TrendLossRatio,
	}
}

// Metric returns the plotted metric.
func (m *Model) Metric() models.TrendMetric {
	return m.metric
}

// Init loads the default series.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	if m.source == nil {
		return nil
	}
	m.loading = true
	src, metric := m.source, m.metric
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), trendTimeout)
		defer cancel()
		series, err := src.WeeklyTrend(ctx, nil, metric)
		return trendLoadedMsg{metric: metric, series: series, err: err}
	}
}

// Update handles messages for the trend tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case trendLoadedMsg:
		if msg.metric != m.metric {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, app.NotifyError("Trend", msg.err)
		}
		m.errMsg = ""
		m.series = msg.series

	case app.DatasetChangedMsg:
		return m, m.load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.NextMetric):
			m.metric = m.metric.Next()
			m.series = nil
			return m, m.load()
		case key.Matches(msg, m.keys.Refresh):
			return m, m.load()
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// SetSize sets the available size for the trend tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.NextMetric, m.keys.Refresh}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextMetric, m.keys.Refresh},
		{m.keys.Up, m.keys.Down},
	}
}
