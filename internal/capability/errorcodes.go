package capability

import "fmt"

// ErrorCodes maps sub-39 "glucose" values, which are really CGM error
// codes, to their display strings.
type ErrorCodes interface {
	ToDisplay(mgdl float64) string
}

// CodeTable is the canonical ErrorCodes implementation.
type CodeTable struct{}

var errorCodes = map[int]string{
	1:  "?SN", // sensor not active
	2:  "?MD", // minimal deviation
	3:  "?NA", // no antenna
	5:  "?NC", // sensor not calibrated
	6:  "?CD", // counts deviation
	9:  "?AD", // absolute deviation
	10: "???", // power deviation
}

func (CodeTable) ToDisplay(mgdl float64) string {
	if display, ok := errorCodes[int(mgdl)]; ok {
		return display
	}
	return fmt.Sprintf("Code %d", int(mgdl))
}
