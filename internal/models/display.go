package models

// Display range classes applied to the current reading.
const (
	RangeUrgent  = "urgent"
	RangeWarning = "warning"
	RangeInRange = "inrange"
)

// Readings below this are error codes, not glucose values.
const MinMeaningfulMgdl = 39

// Thresholds contains glucose threshold settings
type Thresholds struct {
	BGHigh         int `json:"bgHigh"`
	BGLow          int `json:"bgLow"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGTargetBottom int `json:"bgTargetBottom"`
}

// BGColor returns the display color for a glucose value. Themes other than
// "default" color by threshold band; the "colors" theme additionally colors
// in-range values green.
func (t Thresholds) BGColor(mgdl float64, theme string) string {
	if theme == "default" {
		return "grey"
	}

	switch {
	case mgdl > float64(t.BGHigh):
		return "red"
	case mgdl > float64(t.BGTargetTop):
		return "yellow"
	case mgdl >= float64(t.BGTargetBottom) && mgdl <= float64(t.BGTargetTop) && theme == "colors":
		return "#4cff00"
	case mgdl < float64(t.BGLow):
		return "red"
	case mgdl < float64(t.BGTargetBottom):
		return "yellow"
	default:
		return "grey"
	}
}

// ColoredRange returns the display range class for a glucose value, or ""
// when the value is in range or the theme does not color ranges.
func (t Thresholds) ColoredRange(mgdl float64, theme string) string {
	if theme == "default" {
		return ""
	}

	switch {
	case mgdl > float64(t.BGHigh):
		return RangeUrgent
	case mgdl > float64(t.BGTargetTop):
		return RangeWarning
	case mgdl >= float64(t.BGTargetBottom) && mgdl <= float64(t.BGTargetTop) && theme == "colors":
		return RangeInRange
	case mgdl < float64(t.BGLow):
		return RangeUrgent
	case mgdl < float64(t.BGTargetBottom):
		return RangeWarning
	default:
		return ""
	}
}
