package models

import "encoding/json"

// DeviceStatus is one uploader/pump/loop status record. Only the identity
// fields are modeled; everything else is device specific and kept as raw
// JSON so a retro/live merge can overlay individual fields.
type DeviceStatus struct {
	ID     string
	Mills  int64
	Fields map[string]json.RawMessage
}

// UnmarshalJSON extracts _id and mills and keeps the remaining fields raw.
func (d *DeviceStatus) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["_id"]; ok {
		_ = json.Unmarshal(raw, &d.ID)
	}
	if raw, ok := fields["mills"]; ok {
		_ = json.Unmarshal(raw, &d.Mills)
	}

	d.Fields = fields
	return nil
}

// MarshalJSON reassembles the original record shape.
func (d DeviceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Fields)
}

// Merge returns a copy of d with the live record's fields overlaid on top.
// Fields present in both records take the live value.
func (d DeviceStatus) Merge(live DeviceStatus) DeviceStatus {
	merged := DeviceStatus{
		ID:     d.ID,
		Mills:  d.Mills,
		Fields: make(map[string]json.RawMessage, len(d.Fields)+len(live.Fields)),
	}
	for k, v := range d.Fields {
		merged.Fields[k] = v
	}
	for k, v := range live.Fields {
		merged.Fields[k] = v
	}
	if live.Mills != 0 {
		merged.Mills = live.Mills
	}
	return merged
}
