package models

import "encoding/json"

// DataUpdate is the live-stream batch delivered by the server. Every
// collection is optional; absent ones are treated as empty.
type DataUpdate struct {
	Sgvs                 []Entry         `json:"sgvs,omitempty"`
	Mbgs                 []Entry         `json:"mbgs,omitempty"`
	Cal                  *Calibration    `json:"cal,omitempty"`
	DeviceStatus         []DeviceStatus  `json:"devicestatus,omitempty"`
	Profiles             json.RawMessage `json:"profiles,omitempty"`
	ProfileTreatments    json.RawMessage `json:"profileTreatments,omitempty"`
	TempBasalTreatments  json.RawMessage `json:"tempbasalTreatments,omitempty"`
	ComboBolusTreatments json.RawMessage `json:"combobolusTreatments,omitempty"`
}

// RetroUpdate is the retrospective backfill response. Retro data only ever
// contains device statuses.
type RetroUpdate struct {
	DeviceStatus []DeviceStatus `json:"devicestatus"`
}
