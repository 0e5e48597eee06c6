// Package title derives the user-visible status string from the current
// alarm, announcement and data state. Pure derivation, no side effects.
package title

import (
	"fmt"
	"strings"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

// State is everything the composer needs, assembled by the caller on each
// recompute.
type State struct {
	AlarmInProgress bool
	AlarmMessage    string
	IsTimeAgoAlarm  bool

	AnnouncementInProgress bool
	AnnouncementMessage    string

	StalenessStatus string
	Age             capability.AgeDisplay

	Latest    *models.Entry
	Delta     *capability.DeltaResult
	Direction capability.DirectionResult

	Units       string
	CustomTitle string
}

// Composer builds status strings.
type Composer struct {
	errorCodes capability.ErrorCodes
}

// NewComposer creates a composer using the given error-code display.
func NewComposer(errorCodes capability.ErrorCodes) *Composer {
	return &Composer{errorCodes: errorCodes}
}

// Compose picks the displayed title: active alarm first, then active
// announcement, then the generated status, then the custom title. Stale-data
// alarms already carry the age wording, so they show bare.
func (c *Composer) Compose(s State) string {
	generated := c.Status(s)

	switch {
	case s.AlarmInProgress && s.AlarmMessage != "":
		if s.IsTimeAgoAlarm {
			return s.AlarmMessage
		}
		return s.AlarmMessage + ": " + generated
	case s.AnnouncementInProgress && s.AnnouncementMessage != "":
		return s.AnnouncementMessage + ": " + generated
	case generated != "":
		return generated
	default:
		return s.CustomTitle
	}
}

// Status generates the data-derived part of the title: age wording when the
// reading is stale, error-code display for sub-39 values, and
// value/delta/trend otherwise.
func (c *Composer) Status(s State) string {
	sep := func(value, fallback string) string {
		if value != "" {
			return value + " "
		}
		return fallback
	}

	if s.StalenessStatus != capability.StatusCurrent {
		return strings.TrimSpace(sep(s.Age.Value, "") + sep(s.Age.Label, "-"))
	}

	if s.Latest == nil {
		return ""
	}

	if s.Latest.Mgdl < models.MinMeaningfulMgdl {
		return strings.TrimSpace(sep(c.errorCodes.ToDisplay(s.Latest.Mgdl), "-"))
	}

	if s.Delta == nil {
		return ""
	}

	return strings.TrimSpace(sep(scaleBg(s.Latest.Mgdl, s.Units), "") +
		sep(s.Delta.Display, "") +
		sep(s.Direction.Label, ""))
}

func scaleBg(mgdl float64, units string) string {
	// The sensor clamps at the edges of its range; show the edge words
	// instead of a fake number.
	if mgdl >= 400 {
		return "HIGH"
	}
	if mgdl <= 40 {
		return "LOW"
	}
	if units == "mmol" {
		return fmt.Sprintf("%.1f", mgdl/18.0182)
	}
	return fmt.Sprintf("%d", int(mgdl))
}
