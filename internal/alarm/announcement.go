package alarm

import (
	"time"

	"github.com/mrcode/nightscout-sync/internal/models"
)

// AnnouncementStatus is the result of checking the announcement window.
type AnnouncementStatus struct {
	InProgress bool
	Message    string
}

// SetAnnouncement records an announcement. The received time is stamped
// here; the payload's own timestamp is not trusted.
func (e *Engine) SetAnnouncement(notify *models.Notify, now time.Time) {
	e.announcement = notify
	e.announcementReceived = now.UnixMilli()
}

// CheckAnnouncement reports whether an announcement is still inside its
// display window, expiring it when not.
func (e *Engine) CheckAnnouncement(now time.Time) AnnouncementStatus {
	if e.announcement == nil {
		return AnnouncementStatus{}
	}

	if now.UnixMilli()-e.announcementReceived >= AnnouncementWindow.Milliseconds() {
		e.announcement = nil
		e.logger.Info("cleared announcement")
		return AnnouncementStatus{}
	}

	return AnnouncementStatus{InProgress: true, Message: e.announcement.DisplayMessage()}
}
