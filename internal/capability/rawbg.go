package capability

import (
	"math"

	"github.com/mrcode/nightscout-sync/internal/models"
)

// RawBG reconstructs a pre-calibration glucose estimate from the sensor's
// filtered/unfiltered signals and a calibration record.
type RawBG interface {
	// Show reports whether a raw value should be derived for this entry.
	Show(entry *models.Entry, cal *models.Calibration) bool
	// Calc returns the reconstructed mg/dL value, or 0 when it cannot be
	// computed.
	Calc(entry *models.Entry, cal *models.Calibration) float64
}

// RawBGCalc is the canonical RawBG implementation.
type RawBGCalc struct{}

// Show derives raw values only when they add information: noisy readings or
// values below the meaningful range.
func (RawBGCalc) Show(entry *models.Entry, cal *models.Calibration) bool {
	if cal == nil {
		return false
	}
	return entry.Noise >= 2 || entry.Mgdl < 40
}

// Calc applies the calibration slope/intercept/scale to the sensor signals.
func (RawBGCalc) Calc(entry *models.Entry, cal *models.Calibration) float64 {
	if cal == nil || cal.Slope == 0 || cal.Scale == 0 || entry.Unfiltered == 0 {
		return 0
	}

	if entry.Filtered == 0 || entry.Mgdl < 40 {
		return math.Round(cal.Scale * (entry.Unfiltered - cal.Intercept) / cal.Slope)
	}

	ratio := cal.Scale * (entry.Filtered - cal.Intercept) / cal.Slope / entry.Mgdl
	return math.Round(cal.Scale * (entry.Unfiltered - cal.Intercept) / cal.Slope / ratio)
}
