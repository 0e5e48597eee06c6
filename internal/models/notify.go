package models

import "fmt"

// Alarm severity levels, matching the server's level numbering.
const (
	LevelInfo   = 0
	LevelWarn   = 1
	LevelUrgent = 2
)

// LevelDisplay returns the user-visible name for a severity level.
func LevelDisplay(level int) string {
	switch level {
	case LevelUrgent:
		return "Urgent"
	case LevelWarn:
		return "Warning"
	case LevelInfo:
		return "Info"
	default:
		return fmt.Sprintf("Level %d", level)
	}
}

// Notify is one alarm or announcement event from the server.
type Notify struct {
	Title          string `json:"title"`
	Message        string `json:"message,omitempty"`
	Level          int    `json:"level"`
	Group          string `json:"group"`
	IsAnnouncement bool   `json:"isAnnouncement,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// DisplayMessage formats the text shown while this notify is active.
// Announcements with a real message get a severity prefix; everything else
// shows its title.
func (n *Notify) DisplayMessage() string {
	if n.IsAnnouncement && len(n.Message) > 1 {
		return LevelDisplay(n.Level) + ": " + n.Message
	}
	return n.Title
}

// AlarmRecord tracks acknowledgement state for one (level, group) alarm
// category. Created on first reference, lives for the session.
type AlarmRecord struct {
	Level       int
	Group       string
	LastAckTime int64 // unix millis, 0 = never acked
	SilenceTime int64 // millis the last ack silenced for
}

// AlarmKey is the registry key for a (level, group) pair.
func AlarmKey(level int, group string) string {
	return fmt.Sprintf("%d-%s", level, group)
}

// NotAcked reports whether the silence window from the last acknowledgement
// has elapsed at the given time.
func (a *AlarmRecord) NotAcked(nowMills int64) bool {
	return nowMills >= a.LastAckTime+a.SilenceTime
}
