package capability

import (
	"fmt"

	"github.com/mrcode/nightscout-sync/internal/models"
)

// DeltaResult is a change between consecutive sensor readings.
type DeltaResult struct {
	Mgdl    float64
	Display string
}

// Delta computes the change from the previous sensor reading.
type Delta interface {
	Calc(previous, latest *models.Entry, units string) *DeltaResult
}

// DeltaCalc is the canonical Delta implementation.
type DeltaCalc struct{}

// Calc returns nil when there is no usable previous reading.
func (DeltaCalc) Calc(previous, latest *models.Entry, units string) *DeltaResult {
	if previous == nil || latest == nil {
		return nil
	}
	if previous.Mgdl < 40 || latest.Mgdl < 40 {
		return nil
	}

	delta := latest.Mgdl - previous.Mgdl

	var display string
	if units == "mmol" {
		display = fmt.Sprintf("%+.1f", delta/18.0182)
	} else {
		display = fmt.Sprintf("%+d", int(delta))
	}

	return &DeltaResult{Mgdl: delta, Display: display}
}
