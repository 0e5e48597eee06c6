package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceStatusUnmarshal(t *testing.T) {
	data := []byte(`{"_id":"abc123","mills":1700000000000,"uploader":{"battery":72},"pump":{"reservoir":120.5}}`)

	var ds DeviceStatus
	require.NoError(t, json.Unmarshal(data, &ds))

	assert.Equal(t, "abc123", ds.ID)
	assert.Equal(t, int64(1700000000000), ds.Mills)
	assert.Contains(t, ds.Fields, "uploader")
	assert.Contains(t, ds.Fields, "pump")
}

func TestDeviceStatusMerge(t *testing.T) {
	retro := DeviceStatus{
		ID:    "abc123",
		Mills: 100,
		Fields: map[string]json.RawMessage{
			"_id":      json.RawMessage(`"abc123"`),
			"uploader": json.RawMessage(`{"battery":50}`),
			"pump":     json.RawMessage(`{"reservoir":200}`),
		},
	}
	live := DeviceStatus{
		ID:    "abc123",
		Mills: 200,
		Fields: map[string]json.RawMessage{
			"_id":      json.RawMessage(`"abc123"`),
			"uploader": json.RawMessage(`{"battery":72}`),
		},
	}

	merged := retro.Merge(live)

	// Live fields win, retro-only fields are kept.
	assert.JSONEq(t, `{"battery":72}`, string(merged.Fields["uploader"]))
	assert.JSONEq(t, `{"reservoir":200}`, string(merged.Fields["pump"]))
	assert.Equal(t, int64(200), merged.Mills)

	// Merge must not mutate the inputs.
	assert.JSONEq(t, `{"battery":50}`, string(retro.Fields["uploader"]))
}
