// Package dashboard provides the overview tab: headline KPIs, ratio health
// and a grouped comparison table.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/components"
)

const analyzeTimeout = 10 * time.Second

// groupDimensions are the dimensions offered for the comparison table, in
// cycling order.
var groupDimensions = []models.Dimension{
	models.DimThirdLevelOrganization,
	models.DimBusinessTypeCategory,
	models.DimCustomerCategory3,
	models.DimInsuranceType,
	models.DimCoverageType,
	models.DimRenewalStatus,
	models.DimIsNewEnergyVehicle,
	models.DimChengduBranch,
}

// Analyzer runs grouped metric queries.
type Analyzer interface {
	Analyze(ctx context.Context, filters []models.Filter, groupBy []models.Dimension, limit int) ([]models.MetricResult, error)
}

type keyMap struct {
	CycleDimension key.Binding
	Up             key.Binding
	Down           key.Binding
	Refresh        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		CycleDimension: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "group by next dimension"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous group"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next group"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

// groupsLoadedMsg carries grouped results for one dimension.
type groupsLoadedMsg struct {
	dimension models.Dimension
	results   []models.MetricResult
	err       error
}

// Model represents the dashboard tab state.
type Model struct {
	state      *app.State
	analyzer   Analyzer
	thresholds models.Thresholds
	keys       keyMap
	spinner    components.LoadingSpinner
	ratioBar   components.RatioBar
	table      table.Model
	viewport   viewport.Model

	dimIndex int
	groups   []models.MetricResult
	loading  bool
	errMsg   string

	width  int
	height int
}

// New creates a new dashboard model. analyzer may be nil, in which case the
// grouped table stays empty.
func New(state *app.State, analyzer Analyzer, thresholds models.Thresholds) *Model {
	t := table.New(
		table.WithColumns(groupColumns(80)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	t.SetStyles(tableStyles())

	return &Model{
		state:      state,
		analyzer:   analyzer,
		thresholds: thresholds,
		keys:       defaultKeyMap(),
		spinner:    components.NewSpinner("Loading dataset..."),
		ratioBar:   components.NewRatioBar(),
		table:      t,
		viewport:   viewport.New(0, 0),
	}
}

// Dimension returns the dimension the comparison table is grouped by.
func (m *Model) Dimension() models.Dimension {
	return groupDimensions[m.dimIndex]
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), m.loadGroups())
}

func (m *Model) loadGroups() tea.Cmd {
	if m.analyzer == nil {
		return nil
	}
	m.loading = true
	dim := m.Dimension()
	analyzer := m.analyzer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()
		results, err := analyzer.Analyze(ctx, nil, []models.Dimension{dim}, 0)
		return groupsLoadedMsg{dimension: dim, results: results, err: err}
	}
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case groupsLoadedMsg:
		// A slow response for a dimension we already moved past is dropped.
		if msg.dimension != m.Dimension() {
			break
		}
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			cmds = append(cmds, app.NotifyError("Group analysis", msg.err))
			break
		}
		m.errMsg = ""
		m.groups = msg.results
		m.table.SetRows(groupRows(m.groups))
		m.table.GotoTop()

	case app.DatasetChangedMsg:
		cmds = append(cmds, m.loadGroups())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.CycleDimension):
		m.dimIndex = (m.dimIndex + 1) % len(groupDimensions)
		m.groups = nil
		m.table.SetRows(nil)
		return m.loadGroups()
	case key.Matches(msg, m.keys.Refresh):
		return m.loadGroups()
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return cmd
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.table.SetColumns(groupColumns(width - 8))
	m.table.SetHeight(max(height/3, 5))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.CycleDimension, m.keys.Down, m.keys.Up, m.keys.Refresh}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.CycleDimension, m.keys.Refresh},
		{m.keys.Up, m.keys.Down},
	}
}
