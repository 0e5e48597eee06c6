// Package notifications handles system notifications for alarms and
// forwarded server notifications
package notifications

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/alarm"
	"github.com/mrcode/nightscout-sync/internal/models"
)

// Manager surfaces alarm lifecycle events and server notifications as
// desktop notifications. It implements alarm.Sink.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a new notification manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// AlarmRaised sends a notification for a newly-sounding alarm.
func (m *Manager) AlarmRaised(notify *models.Notify, audio alarm.AudioClass, message string) {
	title := "Nightscout alarm"
	if audio == alarm.AudioUrgent {
		title = "⚠️ Nightscout urgent alarm"
	}

	if err := m.sendNotification(title, message); err != nil {
		m.logger.Warn("notification failed", zap.Error(err))
	}
}

// AlarmCleared is part of alarm.Sink. Desktop notifications cannot be
// withdrawn, so there is nothing to do.
func (m *Manager) AlarmCleared() {}

// Forward surfaces a server notification event.
func (m *Manager) Forward(notify *models.Notify) {
	message := notify.Title
	if notify.Message != "" {
		message = fmt.Sprintf("%s %s", notify.Title, notify.Message)
	}

	if err := m.sendNotification("Nightscout", message); err != nil {
		m.logger.Warn("notification failed", zap.Error(err))
	}
}

// sendNotification sends a system notification
func (m *Manager) sendNotification(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return beeep.Notify("Nightscout", "Test notification - alerts are working!", "")
}
