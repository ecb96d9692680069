// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/policy-analytics-tui/internal/services"
	"github.com/j-veylop/policy-analytics-tui/internal/ui/styles"
)

// TabID represents the identifier for a tab in the application.
type TabID int

const (
	// TabDashboard is the ID for the dashboard tab.
	TabDashboard TabID = iota
	// TabRecords is the ID for the paginated record browser.
	TabRecords
	// TabTrend is the ID for the weekly trend tab.
	TabTrend
	// TabInfo is the ID for the info tab.
	TabInfo
)

var tabNames = []string{"Dashboard", "Records", "Trend", "Info"}

// String returns the string representation of the TabID.
func (t TabID) String() string {
	if t < 0 || int(t) >= len(tabNames) {
		return "Unknown"
	}
	return tabNames[t]
}

// Tab defines the interface that all tabs must implement.
type Tab interface {
	// Init initializes the tab and returns any initial commands.
	Init() tea.Cmd

	// Update handles messages and returns the updated tab and any commands.
	Update(msg tea.Msg) (Tab, tea.Cmd)

	// View renders the tab content.
	View() string

	// SetSize sets the available size for the tab.
	SetSize(width, height int)

	// ShortHelp returns key bindings for the short help view.
	ShortHelp() []key.Binding

	// FullHelp returns key bindings for the full help view.
	FullHelp() [][]key.Binding
}

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	Tab1     key.Binding
	Tab2     key.Binding
	Tab3     key.Binding
	Tab4     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Refresh  key.Binding
	Help     key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Escape   key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Tab1:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		Tab2:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "records")),
		Tab3:     key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "trend")),
		Tab4:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "info")),
		NextTab:  key.NewBinding(key.WithKeys("tab", "right"), key.WithHelp("tab/→", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab", "left"), key.WithHelp("shift+tab/←", "prev tab")),
		Refresh:  key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Escape:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Refresh, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4},
		{k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Refresh, k.Help, k.Quit},
	}
}

// Styles defines the application styles.
type Styles struct {
	// Tab bar styles
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style

	// Notification styles
	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content lipgloss.Style
	Toast   lipgloss.Style

	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(styles.ColorMuted),
		ActiveTab:   lipgloss.NewStyle().Bold(true).Foreground(styles.ColorPrimary).Padding(0, 2),
		InactiveTab: lipgloss.NewStyle().Foreground(styles.ColorMuted).Padding(0, 2),

		NotificationSuccess: lipgloss.NewStyle().Foreground(styles.ColorSuccess).Padding(0, 1),
		NotificationError:   lipgloss.NewStyle().Foreground(styles.ColorError).Bold(true).Padding(0, 1),
		NotificationWarning: lipgloss.NewStyle().Foreground(styles.ColorWarning).Padding(0, 1),
		NotificationInfo:    lipgloss.NewStyle().Foreground(styles.ColorInfo).Padding(0, 1),

		Content: lipgloss.NewStyle().Padding(1, 2),
		Toast:   styles.ToastStyle,

		Title:     lipgloss.NewStyle().Bold(true).Foreground(styles.ColorPrimary),
		Subtle:    lipgloss.NewStyle().Foreground(styles.ColorMuted),
		Highlight: lipgloss.NewStyle().Foreground(styles.ColorPrimary),
	}
}

// Model is the main application model.
type Model struct {
	activeTab TabID
	tabs      []Tab

	state    *State
	services *services.Manager
	keymap   KeyMap
	styles   Styles

	spinner spinner.Model

	width  int
	height int

	showHelp bool
	ready    bool

	eventChannel chan services.ServiceEvent
}

// NewModel initializes a new application model.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.ColorPrimary)

	return &Model{
		activeTab: TabDashboard,
		tabs:      make([]Tab, len(tabNames)), // filled by SetTabs
		state:     NewState(),
		services:  mgr,
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		spinner:   s,
	}
}

// SetTabs sets the tabs for the model.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetActiveTab returns the currently active tab ID.
func (m *Model) GetActiveTab() TabID {
	return m.activeTab
}

// IsReady returns true if the model is ready (window size received).
func (m *Model) IsReady() bool {
	return m.ready
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading dataset...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services))
		cmds = append(cmds, loadDatasetCmd(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()
	case tea.KeyMsg:
		if cmd, handled := m.handleKeyMsg(msg); handled {
			return m, cmd
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case DatasetChangedMsg:
		// Every tab holds query results for the old snapshot.
		return m, m.broadcastToTabs(msg)
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	if cmd := m.updateActiveTab(msg); cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case TickMsg:
		m.state.ClearExpiredNotifications()
		cmds = append(cmds, defaultTickCmd())
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
	case ServiceEventMsg:
		if cmd := m.handleServiceEvent(msg.Event); cmd != nil {
			cmds = append(cmds, cmd)
		}
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
	case DatasetLoadedMsg:
		m.handleDatasetLoaded(msg)
	case StatsLoadedMsg:
		m.state.SetLoading("stats", false)
		m.state.SetStats(msg.Stats)
		m.stopLoadingIfIdle()
	case ImportFileMsg:
		if m.services != nil {
			m.state.SetLoading("import", true)
			cmds = append(cmds, importFileCmd(m.services, msg.Path))
		}
	case ImportResultMsg:
		m.state.SetLoading("import", false)
		m.stopLoadingIfIdle()
		cmds = append(cmds, importResultNotification(msg))
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			cmds = append(cmds, clearNotificationCmd(id, msg.Duration))
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing...")
	case StopLoadingMsg:
		m.state.SetLoading(msg.Resource, false)
		m.stopLoadingIfIdle()
	case ErrorMsg:
		text := msg.Error.Error()
		if msg.Context != "" {
			text = msg.Context + ": " + text
		}
		cmds = append(cmds, notifyErrorCmd(text))
	case RefreshMsg:
		cmds = append(cmds, m.handleRefresh(msg)...)
	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()
	case ToggleHelpMsg:
		m.showHelp = !m.showHelp
	}
	return cmds
}

func (m *Model) handleDatasetLoaded(msg DatasetLoadedMsg) {
	m.state.SetLoading("initial", false)
	m.state.SetLoading("dataset", false)
	m.state.SetSummary(msg.Summary)
	m.state.SetStats(msg.Stats)
	m.state.SetImports(msg.Imports)
	m.stopLoadingIfIdle()
}

func (m *Model) stopLoadingIfIdle() {
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func importResultNotification(msg ImportResultMsg) tea.Cmd {
	name := filepath.Base(msg.Path)
	switch {
	case msg.Error != nil:
		return notifyErrorCmd(fmt.Sprintf("Import of %s failed: %v", name, msg.Error))
	case msg.Skipped:
		return notifyInfoCmd(fmt.Sprintf("%s unchanged, skipped", name))
	case msg.Issues > 0:
		return notifyWarningCmd(fmt.Sprintf("Imported %d rows from %s (%d issues)", msg.Rows, name, msg.Issues))
	default:
		return notifySuccessCmd(fmt.Sprintf("Imported %d rows from %s", msg.Rows, name))
	}
}

func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil {
		return nil
	}

	cmds := []tea.Cmd{func() tea.Msg { return StartLoadingMsg(msg) }}
	switch msg.Resource {
	case "all", "dataset":
		cmds = append(cmds, loadDatasetCmd(m.services))
	case "stats":
		cmds = append(cmds, loadStatsCmd(m.services))
	}
	return cmds
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) broadcastToTabs(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i, tab := range m.tabs {
		if tab == nil {
			continue
		}
		var cmd tea.Cmd
		m.tabs[i], cmd = tab.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (m *Model) updateTabSizes() {
	contentHeight := max(0, m.height-5)
	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

func (m *Model) switchTab(id TabID) tea.Cmd {
	return func() tea.Msg { return TabSwitchMsg{Tab: id} }
}

// handleKeyMsg handles global keys. The bool reports whether the key was
// consumed; unconsumed keys go to the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, m.keymap.Escape):
		if m.showHelp {
			m.showHelp = false
			return nil, true
		}

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabDashboard), true

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabRecords), true

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabTrend), true

	case key.Matches(msg, m.keymap.Tab4):
		return m.switchTab(TabInfo), true

	case key.Matches(msg, m.keymap.NextTab):
		if !m.showHelp && len(m.tabs) > 0 {
			return m.switchTab(TabID((int(m.activeTab) + 1) % len(m.tabs))), true
		}

	case key.Matches(msg, m.keymap.PrevTab):
		if !m.showHelp && len(m.tabs) > 0 {
			return m.switchTab(TabID((int(m.activeTab) - 1 + len(m.tabs)) % len(m.tabs))), true
		}

	case key.Matches(msg, m.keymap.Refresh):
		if m.services == nil {
			return nil, true
		}
		return tea.Batch(
			func() tea.Msg { return StartLoadingMsg{Resource: "dataset"} },
			loadDatasetCmd(m.services),
		), false
	}

	return nil, false
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.DatasetChangedEvent:
		m.state.SetSummary(e.Summary)
		version := e.Version
		var cmds []tea.Cmd
		if m.services != nil {
			cmds = append(cmds, loadDatasetCmd(m.services))
		}
		cmds = append(cmds, func() tea.Msg { return DatasetChangedMsg{Version: version} })
		return tea.Batch(cmds...)

	case services.ImportEvent:
		if e.Report == nil {
			return nil
		}
		return importResultNotification(ImportResultMsg{
			Path:    e.Report.Batch.SourcePath,
			Skipped: e.Report.Skipped,
			Rows:    e.Report.Batch.RowCount,
			Issues:  len(e.Report.Rejected) + len(e.Report.Warnings),
		})

	case services.AnomaliesEvent:
		return notifyWarningCmd("Anomalies: " + strings.Join(e.New, ", "))

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))

	case services.StatsEvent:
		m.state.SetStats(e)
	}

	return nil
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(fmt.Sprintf("%s Loading...", m.spinner.View())))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	overlayLines := strings.Split(overlay, "\n")
	mainLines := padLines(strings.Split(mainView, "\n"), max(m.height, len(overlayLines)))

	y := max(0, (m.height-len(overlayLines))/2)
	overlayWidth := lipgloss.Width(overlay)
	x := max(0, (m.width-overlayWidth)/2)

	for i, overlayLine := range overlayLines {
		row := y + i
		if row >= len(mainLines) {
			break
		}

		line := mainLines[row]
		left := ansi.Truncate(line, x, "")
		right := ansi.TruncateLeft(line, x+overlayWidth, "")
		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		mainLines[row] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

// padLines appends blank lines so overlays can be placed below short views.
func padLines(lines []string, n int) []string {
	for len(lines) < n {
		lines = append(lines, "")
	}
	return lines
}

func (m *Model) renderNavbar() string {
	var tabs []string

	for i, name := range tabNames {
		if TabID(i) == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", i+1, name)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", i+1, name)))
		}
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if v := m.state.GetVersion(); v > 0 {
		bar = lipgloss.JoinHorizontal(lipgloss.Top, bar,
			m.styles.Subtle.Render(fmt.Sprintf("  %d records · v%d", m.state.GetRecordCount(), v)))
	}

	return m.styles.TabBar.Width(m.width).Render(bar)
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = m.styles.NotificationSuccess, "[OK]"
		case NotificationError:
			style, prefix = m.styles.NotificationError, "[ERR]"
		case NotificationWarning:
			style, prefix = m.styles.NotificationWarning, "[WARN]"
		case NotificationInfo:
			style, prefix = m.styles.NotificationInfo, "[INFO]"
		case NotificationLoading:
			style, prefix = m.styles.NotificationInfo, m.spinner.View()
		}

		content := style.Render(fmt.Sprintf("%s %s", prefix, n.Message))
		toasts = append(toasts, m.styles.Toast.Render(content))
	}

	return toasts
}

func (m *Model) overlayToasts(mainView string, toasts []string) string {
	stack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(stack, "\n")

	startX := max(m.width-lipgloss.Width(stack)-2, 0)
	const startY = 2
	mainLines := padLines(strings.Split(mainView, "\n"), startY+len(toastLines))

	for i, toastLine := range toastLines {
		row := startY + i
		if row >= len(mainLines) {
			break
		}

		line := mainLines[row]
		if w := lipgloss.Width(line); w < startX {
			mainLines[row] = line + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[row] = ansi.Truncate(line, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	lines := []string{
		m.styles.Title.Render("Keyboard Shortcuts"),
		"",
		m.styles.Highlight.Render("Navigation"),
		"  1-4        Switch tabs",
		"  Tab        Next tab",
		"  Shift+Tab  Previous tab",
		"",
		m.styles.Highlight.Render("Actions"),
		"  r          Reload dataset",
		"  ?          Toggle help",
		"  q/Ctrl+C   Quit",
		"",
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		if tabHelp := m.tabs[m.activeTab].ShortHelp(); len(tabHelp) > 0 {
			lines = append(lines, m.styles.Highlight.Render(m.activeTab.String()+" Tab"))
			for _, binding := range tabHelp {
				lines = append(lines, fmt.Sprintf("  %-10s %s", binding.Help().Key, binding.Help().Desc))
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf(
		"Tab %d: %s\n\n%s",
		m.activeTab+1,
		m.activeTab,
		m.styles.Subtle.Render("This tab is not yet implemented."),
	)
	return m.styles.Content.Render(content)
}
