// Package models contains data structures used throughout the application
package models

import "time"

// Entry types as they appear on the wire.
const (
	TypeSGV   = "sgv"
	TypeMBG   = "mbg"
	TypeRawBG = "rawbg"
)

// Entry is a single observed reading: a sensor glucose value, a manual
// (fingerstick) reading, or a reconstructed raw-BG point. Identity is
// (Mills, Type).
type Entry struct {
	Mills      int64   `json:"mills"`
	Mgdl       float64 `json:"mgdl"`
	Type       string  `json:"type"`
	Direction  string  `json:"direction,omitempty"`
	Noise      int     `json:"noise,omitempty"`
	Filtered   float64 `json:"filtered,omitempty"`
	Unfiltered float64 `json:"unfiltered,omitempty"`
	Color      string  `json:"color,omitempty"` // derived display tag
	Range      string  `json:"range,omitempty"` // derived display range class
	Device     string  `json:"device,omitempty"`

	date *time.Time
}

// Date returns the entry time, computing and caching it from Mills on first
// use.
func (e *Entry) Date() time.Time {
	if e.date == nil {
		d := time.UnixMilli(e.Mills)
		e.date = &d
	}
	return *e.date
}

// ValueMmolL returns the glucose value in mmol/L
func (e *Entry) ValueMmolL() float64 {
	return e.Mgdl / 18.0182
}

// Calibration is the most recent sensor calibration record, used for raw-BG
// reconstruction.
type Calibration struct {
	Mills     int64   `json:"mills"`
	Scale     float64 `json:"scale"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
}
