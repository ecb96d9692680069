// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"strconv"
	"sync"
	"time"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
	"github.com/j-veylop/policy-analytics-tui/internal/services"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"

	maxNotifications = 10
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	case NotificationLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// LoadingState tracks loading states for different resources.
type LoadingState struct {
	Initial bool
	Dataset bool
	Import  bool
	Stats   bool
}

// State is shared between the root model and the tabs.
type State struct {
	mu sync.RWMutex

	Summary *models.MetricResult
	Stats   *services.StatsEvent
	Imports []models.ImportBatch
	Version uint64

	Loading LoadingState

	LastUpdated time.Time

	notifications   []Notification
	notificationSeq int
}

// NewState creates the shared state with the initial load pending.
func NewState() *State {
	return &State{
		Imports:       make([]models.ImportBatch, 0),
		notifications: make([]Notification, 0),
		Loading: LoadingState{
			Initial: true,
		},
	}
}

// SetLoading sets the loading state for a specific resource.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resource {
	case "initial":
		s.Loading.Initial = loading
	case "dataset":
		s.Loading.Dataset = loading
	case "import":
		s.Loading.Import = loading
	case "stats":
		s.Loading.Stats = loading
	}
}

// AnyLoading returns true if any resource is currently loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Loading.Initial ||
		s.Loading.Dataset ||
		s.Loading.Import ||
		s.Loading.Stats
}

// IsInitialLoading returns true if initial data is still loading.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// GetLoadingResources returns a list of currently loading resources.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	if s.Loading.Initial {
		resources = append(resources, "initial")
	}
	if s.Loading.Dataset {
		resources = append(resources, "dataset")
	}
	if s.Loading.Import {
		resources = append(resources, "import")
	}
	if s.Loading.Stats {
		resources = append(resources, "stats")
	}
	return resources
}

// SetSummary stores the overall metrics of the dataset.
func (s *State) SetSummary(summary models.MetricResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summary = &summary
	s.LastUpdated = time.Now()
}

// GetSummary returns the overall metrics, or nil before the first load.
func (s *State) GetSummary() *models.MetricResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Summary
}

// SetStats updates the statistics.
func (s *State) SetStats(stats services.StatsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats = &stats
	s.Version = stats.Version
}

// GetStats returns the current statistics.
func (s *State) GetStats() *services.StatsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// GetRecordCount returns the number of loaded records.
func (s *State) GetRecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Stats == nil {
		return 0
	}
	return s.Stats.Records
}

// GetVersion returns the dataset version of the last stats update.
func (s *State) GetVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Version
}

// SetImports replaces the import batch list.
func (s *State) SetImports(imports []models.ImportBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Imports = imports
}

// GetImports returns a copy of the import batch list.
func (s *State) GetImports() []models.ImportBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	imports := make([]models.ImportBatch, len(s.Imports))
	copy(imports, s.Imports)
	return imports
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + strconv.Itoa(s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = activeNotifications(s.notifications)
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeNotifications(s.notifications)
}

func activeNotifications(all []Notification) []Notification {
	active := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// GetLastUpdated returns the last time the summary was updated.
func (s *State) GetLastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastUpdated
}

// TimeSinceUpdate returns the duration since the last update.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}
