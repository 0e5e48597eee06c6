package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(models.DefaultSettings(), capability.Defaults(), zap.NewNop())
}

func status(id string, mills int64, fields map[string]string) models.DeviceStatus {
	raw := make(map[string]json.RawMessage, len(fields)+2)
	for k, v := range fields {
		raw[k] = json.RawMessage(v)
	}
	raw["_id"] = json.RawMessage(`"` + id + `"`)
	return models.DeviceStatus{ID: id, Mills: mills, Fields: raw}
}

func TestApplyLiveUpdateIdempotent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	update := &models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: now.Add(-10 * time.Minute).UnixMilli(), Mgdl: 110, Type: models.TypeSGV},
			{Mills: now.Add(-5 * time.Minute).UnixMilli(), Mgdl: 120, Type: models.TypeSGV},
		},
		Mbgs: []models.Entry{
			{Mills: now.Add(-7 * time.Minute).UnixMilli(), Mgdl: 115, Type: models.TypeMBG},
		},
	}

	s.ApplyLiveUpdate(update, now)
	first := append([]models.Entry(nil), s.Entries()...)

	s.ApplyLiveUpdate(update, now)
	assert.Equal(t, first, s.Entries())

	require.NotNil(t, s.LatestSGV())
	assert.Equal(t, float64(120), s.LatestSGV().Mgdl)
	require.NotNil(t, s.PreviousSGV())
	assert.Equal(t, float64(110), s.PreviousSGV().Mgdl)
}

func TestApplyLiveUpdateSkipsZeroMills(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: 0, Mgdl: 100, Type: models.TypeSGV},
			{Mills: now.UnixMilli(), Mgdl: 120, Type: models.TypeSGV},
		},
	}, now)

	assert.Len(t, s.Entries(), 1)
}

func TestDeriveEntriesColors(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: now.Add(-20 * time.Minute).UnixMilli(), Mgdl: 9, Type: models.TypeSGV},
			{Mills: now.Add(-15 * time.Minute).UnixMilli(), Mgdl: 120, Type: models.TypeSGV},
			{Mills: now.Add(-10 * time.Minute).UnixMilli(), Mgdl: 200, Type: models.TypeSGV},
			{Mills: now.Add(-5 * time.Minute).UnixMilli(), Mgdl: 270, Type: models.TypeSGV},
		},
		Mbgs: []models.Entry{
			{Mills: now.Add(-8 * time.Minute).UnixMilli(), Mgdl: 130, Type: models.TypeMBG},
		},
	}, now)

	entries := s.Entries()
	require.Len(t, entries, 5)

	byMgdl := make(map[float64]models.Entry)
	for _, e := range entries {
		byMgdl[e.Mgdl] = e
	}

	// Sub-39 values are error codes and drawn transparent.
	assert.Equal(t, "transparent", byMgdl[9].Color)
	assert.Equal(t, "#4cff00", byMgdl[120].Color)
	assert.Equal(t, "yellow", byMgdl[200].Color)
	assert.Equal(t, "red", byMgdl[270].Color)
	assert.Equal(t, "red", byMgdl[130].Color)
	assert.Equal(t, models.TypeMBG, byMgdl[130].Type)

	// Sensor readings also carry the range class for renderers.
	assert.Equal(t, models.RangeInRange, byMgdl[120].Range)
	assert.Equal(t, models.RangeWarning, byMgdl[200].Range)
	assert.Equal(t, models.RangeUrgent, byMgdl[270].Range)

	// Ascending mills order.
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Mills, entries[i].Mills)
	}
}

func TestDeriveEntriesRawBG(t *testing.T) {
	settings := models.DefaultSettings()
	settings.EnableRawBG = true
	s := New(settings, capability.Defaults(), zap.NewNop())
	now := time.Now()

	mills := now.Add(-5 * time.Minute).UnixMilli()
	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: mills, Mgdl: 100, Noise: 3, Unfiltered: 125000, Type: models.TypeSGV},
		},
		Cal: &models.Calibration{Scale: 1, Intercept: 25000, Slope: 1000},
	}, now)

	entries := s.Entries()
	require.Len(t, entries, 2)

	// Raw point comes first, 2 seconds before its source reading.
	assert.Equal(t, models.TypeRawBG, entries[0].Type)
	assert.Equal(t, mills-2000, entries[0].Mills)
	assert.Equal(t, "white", entries[0].Color)
	assert.Equal(t, models.TypeSGV, entries[1].Type)
}

func TestDeriveEntriesEviction(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: now.Add(-49 * time.Hour).UnixMilli(), Mgdl: 100, Type: models.TypeSGV},
			{Mills: now.Add(-1 * time.Hour).UnixMilli(), Mgdl: 110, Type: models.TypeSGV},
		},
	}, now)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, float64(110), entries[0].Mgdl)
}

func TestDataExtent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	// Empty store falls back to the last 48 hours.
	extent := s.DataExtent(now)
	assert.Equal(t, now.Add(-RetentionHorizon), extent[0])
	assert.Equal(t, now, extent[1])

	first := now.Add(-3 * time.Hour)
	last := now.Add(-5 * time.Minute)
	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: first.UnixMilli(), Mgdl: 100, Type: models.TypeSGV},
			{Mills: last.UnixMilli(), Mgdl: 110, Type: models.TypeSGV},
		},
	}, now)

	extent = s.DataExtent(now)
	assert.Equal(t, first.UnixMilli(), extent[0].UnixMilli())
	assert.Equal(t, last.UnixMilli(), extent[1].UnixMilli())
}

func TestSGVBefore(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	early := now.Add(-30 * time.Minute)
	late := now.Add(-5 * time.Minute)
	s.ApplyLiveUpdate(&models.DataUpdate{
		Sgvs: []models.Entry{
			{Mills: early.UnixMilli(), Mgdl: 100, Type: models.TypeSGV},
			{Mills: late.UnixMilli(), Mgdl: 110, Type: models.TypeSGV},
		},
	}, now)

	got := s.SGVBefore(now.Add(-10 * time.Minute))
	require.NotNil(t, got)
	assert.Equal(t, float64(100), got.Mgdl)

	got = s.SGVBefore(now)
	require.NotNil(t, got)
	assert.Equal(t, float64(110), got.Mgdl)

	assert.Nil(t, s.SGVBefore(now.Add(-1*time.Hour)))
}

func TestDeviceStatusEviction(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	s.ApplyLiveUpdate(&models.DataUpdate{
		DeviceStatus: []models.DeviceStatus{
			status("old", now.Add(-49*time.Hour).UnixMilli(), nil),
			status("fresh", now.Add(-time.Hour).UnixMilli(), nil),
			status("unstamped", 0, nil),
		},
	}, now)

	merged := s.MergedDeviceStatus()
	require.Len(t, merged, 2)

	ids := []string{merged[0].ID, merged[1].ID}
	assert.Contains(t, ids, "fresh")
	assert.Contains(t, ids, "unstamped")
}

func TestMergeDeviceStatus(t *testing.T) {
	retro := []models.DeviceStatus{
		status("a", 100, map[string]string{"uploader": `{"battery":50}`, "pump": `{"reservoir":200}`}),
		status("b", 100, map[string]string{"uploader": `{"battery":90}`}),
	}
	live := []models.DeviceStatus{
		status("a", 200, map[string]string{"uploader": `{"battery":72}`}),
		status("c", 200, map[string]string{"uploader": `{"battery":40}`}),
	}

	merged := MergeDeviceStatus(retro, live)
	require.Len(t, merged, 3)

	byID := make(map[string]models.DeviceStatus)
	for _, d := range merged {
		byID[d.ID] = d
	}

	// Shared identity gets live fields over retro fields.
	assert.JSONEq(t, `{"battery":72}`, string(byID["a"].Fields["uploader"]))
	assert.JSONEq(t, `{"reservoir":200}`, string(byID["a"].Fields["pump"]))
	// Retro-only and live-only records survive unchanged.
	assert.JSONEq(t, `{"battery":90}`, string(byID["b"].Fields["uploader"]))
	assert.JSONEq(t, `{"battery":40}`, string(byID["c"].Fields["uploader"]))
}

func TestMergeDeviceStatusNilRetro(t *testing.T) {
	live := []models.DeviceStatus{status("a", 100, nil)}
	assert.Equal(t, live, MergeDeviceStatus(nil, live))
}

func TestMergedDeviceStatusUsesRetroOverlay(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	s.ApplyLiveUpdate(&models.DataUpdate{
		DeviceStatus: []models.DeviceStatus{
			status("a", 200, map[string]string{"uploader": `{"battery":72}`}),
		},
	}, now)

	// Without retro data the live collection is returned as-is.
	assert.Len(t, s.MergedDeviceStatus(), 1)

	s.ApplyRetroUpdate(&models.RetroUpdate{
		DeviceStatus: []models.DeviceStatus{
			status("a", 100, map[string]string{"pump": `{"reservoir":200}`}),
			status("old", 50, nil),
		},
	}, now)

	merged := s.MergedDeviceStatus()
	assert.Len(t, merged, 2)
}
