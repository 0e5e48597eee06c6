package capability

import (
	"fmt"
	"time"
)

// Staleness classification of the latest reading.
const (
	StatusCurrent = "current"
	StatusWarn    = "warn"
	StatusUrgent  = "urgent"
)

// AgeDisplay is the "time ago" wording for a stale reading.
type AgeDisplay struct {
	Value string // e.g. "25"
	Label string // e.g. "mins ago"
}

// Staleness classifies how long it has been since the last reading.
type Staleness interface {
	// Check classifies the elapsed time against the warn/urgent thresholds
	// (in minutes).
	Check(lastMills, nowMills int64, warnMins, urgentMins int) string
	// Display returns the "time ago" wording for the elapsed time.
	Display(lastMills, nowMills int64) AgeDisplay
}

// StalenessCheck is the canonical Staleness implementation.
type StalenessCheck struct{}

func (StalenessCheck) Check(lastMills, nowMills int64, warnMins, urgentMins int) string {
	if lastMills <= 0 {
		return StatusUrgent
	}

	elapsed := time.Duration(nowMills-lastMills) * time.Millisecond
	switch {
	case elapsed >= time.Duration(urgentMins)*time.Minute:
		return StatusUrgent
	case elapsed >= time.Duration(warnMins)*time.Minute:
		return StatusWarn
	default:
		return StatusCurrent
	}
}

func (StalenessCheck) Display(lastMills, nowMills int64) AgeDisplay {
	if lastMills <= 0 {
		return AgeDisplay{Value: "", Label: "never"}
	}

	elapsed := time.Duration(nowMills-lastMills) * time.Millisecond
	switch {
	case elapsed < time.Minute:
		return AgeDisplay{Value: "", Label: "just now"}
	case elapsed < time.Hour:
		return AgeDisplay{Value: fmt.Sprintf("%d", int(elapsed.Minutes())), Label: "mins ago"}
	case elapsed < 24*time.Hour:
		return AgeDisplay{Value: fmt.Sprintf("%d", int(elapsed.Hours())), Label: "hours ago"}
	default:
		return AgeDisplay{Value: fmt.Sprintf("%d", int(elapsed.Hours()/24)), Label: "days ago"}
	}
}
