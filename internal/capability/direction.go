package capability

// DirectionResult describes a trend direction for display.
type DirectionResult struct {
	Value string // canonical direction name
	Label string // arrow character
}

// Direction maps a reading's direction string to display info.
type Direction interface {
	Info(direction string) DirectionResult
}

// DirectionInfo is the canonical Direction implementation.
type DirectionInfo struct{}

var directionArrows = map[string]string{
	"DoubleUp":          "⇈",
	"SingleUp":          "↑",
	"FortyFiveUp":       "↗",
	"Flat":              "→",
	"FortyFiveDown":     "↘",
	"SingleDown":        "↓",
	"DoubleDown":        "⇊",
	"NONE":              "⇼",
	"NOT COMPUTABLE":    "-",
	"RATE OUT OF RANGE": "⇕",
}

func (DirectionInfo) Info(direction string) DirectionResult {
	if arrow, ok := directionArrows[direction]; ok {
		return DirectionResult{Value: direction, Label: arrow}
	}
	return DirectionResult{Value: "NONE", Label: "-"}
}
