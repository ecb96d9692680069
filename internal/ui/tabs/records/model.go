// Package records provides a paginated browser over the raw policy records.
package records

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/policy-analytics-tui/internal/app"
	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

const queryTimeout = 10 * time.Second

// sortFields are the fields offered by the sort key, in cycling order. The
// zero entry means insertion order.
var sortFields = []*models.Field{
	nil,
	ptr(models.MeasureField(models.MeasureSignedPremium)),
	ptr(models.MeasureField(models.MeasureReportedClaimPayment)),
	ptr(models.MeasureField(models.MeasurePolicyCount)),
	ptr(models.DimensionField(models.DimSnapshotDate)),
	ptr(models.DimensionField(models.DimWeekNumber)),
	ptr(models.DimensionField(models.DimThirdLevelOrganization)),
}

func ptr[T any](v T) *T { return &v }

// Querier pages through records.
type Querier interface {
	Query(ctx context.Context, filters []models.Filter, sort *models.Sort, page, pageSize int) (models.Page[models.Record], error)
}

type keyMap struct {
	NextPage  key.Binding
	PrevPage  key.Binding
	CycleSort key.Binding
	Direction key.Binding
	Up        key.Binding
	Down      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NextPage:  key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "previous page")),
		CycleSort: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort field")),
		Direction: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "toggle order")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	}
}

type pageLoadedMsg struct {
	request int
	page    models.Page[models.Record]
	err     error
}

// Model represents the records tab state.
type Model struct {
	querier  Querier
	keys     keyMap
	table    table.Model
	pageSize int

	page      int
	sortIndex int
	direction models.SortDirection
	current   models.Page[models.Record]
	request   int
	errMsg    string

	width  int
	height int
}

// New creates a records tab. pageSize of zero uses the querier's default.
func New(querier Querier, pageSize int) *Model {
	t := table.New(
		table.WithColumns(recordColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).Foreground(styles.ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(styles.ColorMuted)
	s.Selected = styles.TableSelectedStyle
	t.SetStyles(s)

	return &Model{
		querier:   querier,
		keys:      defaultKeyMap(),
		table:     t,
		pageSize:  pageSize,
		page:      1,
		direction: models.SortDesc,
	}
}

// Sort returns the active sort, or nil for insertion order.
func (m *Model) Sort() *models.Sort {
	f := sortFields[m.sortIndex]
	if f == nil {
		return nil
	}
	return &models.Sort{Field: *f, Direction: m.direction}
}

// Init loads the first page.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	if m.querier == nil {
		return nil
	}
	m.request++
	req, page, size, sort := m.request, m.page, m.pageSize, m.Sort()
	q := m.querier
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		p, err := q.Query(ctx, nil, sort, page, size)
		return pageLoadedMsg{request: req, page: p, err: err}
	}
}

// Update handles messages for the records tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case pageLoadedMsg:
		if msg.request != m.request {
			return m, nil
		}
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, app.NotifyError("Records", msg.err)
		}
		m.errMsg = ""
		m.current = msg.page
		m.table.SetRows(recordRows(msg.page.Data))
		m.table.GotoTop()

	case app.DatasetChangedMsg:
		m.page = 1
		return m, m.load()

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NextPage):
		if m.page < m.current.TotalPages {
			m.page++
			return m.load()
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.page > 1 {
			m.page--
			return m.load()
		}
	case key.Matches(msg, m.keys.CycleSort):
		m.sortIndex = (m.sortIndex + 1) % len(sortFields)
		m.page = 1
		return m.load()
	case key.Matches(msg, m.keys.Direction):
		if m.direction == models.SortDesc {
			m.direction = models.SortAsc
		} else {
			m.direction = models.SortDesc
		}
		if m.Sort() != nil {
			m.page = 1
			return m.load()
		}
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return cmd
	}
	return nil
}

// SetSize sets the available size for the records tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(recordColumns(width - 4))
	m.table.SetHeight(max(height-6, 3))
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.NextPage, m.keys.PrevPage, m.keys.CycleSort, m.keys.Direction}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextPage, m.keys.PrevPage},
		{m.keys.CycleSort, m.keys.Direction},
		{m.keys.Up, m.keys.Down},
	}
}
