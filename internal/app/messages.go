package app

import (
	"time"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// StopLoadingMsg signals that a resource has finished loading.
type StopLoadingMsg struct {
	Resource string
}

// DatasetLoadedMsg contains the overall summary and statistics.
type DatasetLoadedMsg struct {
	Summary models.MetricResult
	Stats   services.StatsEvent
	Imports []models.ImportBatch
}

// StatsLoadedMsg contains loaded statistics.
type StatsLoadedMsg struct {
	Stats services.StatsEvent
}

// DatasetChangedMsg tells tabs that the snapshot was reloaded and their
// cached query results are stale.
type DatasetChangedMsg struct {
	Version uint64
}

// ImportFileMsg requests importing a CSV file.
type ImportFileMsg struct {
	Path string
}

// ImportResultMsg contains the outcome of an import.
type ImportResultMsg struct {
	Path    string
	Skipped bool
	Rows    int
	Issues  int
	Error   error
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // "all", "dataset", "stats"
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}
