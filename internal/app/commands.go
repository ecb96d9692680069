package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/policy-analytics-tui/internal/logger"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadDatasetCmd returns a command that loads the summary, stats and imports.
func loadDatasetCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		summary, stats := mgr.InitialState()
		imports, err := mgr.Imports()
		if err != nil {
			logger.Warn("failed to list imports", "error", err)
		}
		return DatasetLoadedMsg{
			Summary: summary,
			Stats:   stats,
			Imports: imports,
		}
	}
}

// loadStatsCmd returns a command that loads statistics.
func loadStatsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		return StatsLoadedMsg{Stats: mgr.GetStats()}
	}
}

// importFileCmd returns a command that imports one CSV file.
func importFileCmd(mgr *services.Manager, path string) tea.Cmd {
	return func() tea.Msg {
		report, err := mgr.ImportFile(path)
		if err != nil {
			return ImportResultMsg{Path: path, Error: err}
		}
		return ImportResultMsg{
			Path:    path,
			Skipped: report.Skipped,
			Rows:    report.Batch.RowCount,
			Issues:  len(report.Rejected) + len(report.Warnings),
		}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: d}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// NotifyError is the exported error notification for tabs.
func NotifyError(context string, err error) tea.Cmd {
	return notifyErrorCmd(fmt.Sprintf("%s: %v", context, err))
}

// Commands provides a public interface to the command functions.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// Tick returns a tick command with the specified interval.
func (c *Commands) Tick(interval time.Duration) tea.Cmd {
	return tickCmd(interval)
}

// DefaultTick returns a tick command with the default interval.
func (c *Commands) DefaultTick() tea.Cmd {
	return defaultTickCmd()
}

// LoadDataset returns a command that reloads the summary and stats.
func (c *Commands) LoadDataset() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadDatasetCmd(c.manager)
}

// ImportFile returns a command that imports a CSV file.
func (c *Commands) ImportFile(path string) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return importFileCmd(c.manager, path)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}

// Quit returns a command that quits the application.
func (c *Commands) Quit() tea.Cmd {
	return tea.Quit
}
