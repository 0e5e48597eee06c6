// Package store holds the observed data set and reconciles the live stream
// with retrospective backfill.
package store

import (
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

// RetentionHorizon is how far back entries are kept.
const RetentionHorizon = 48 * time.Hour

// Store owns the current set of observed entries and the retro dataset.
// All methods must be called from the dispatch goroutine.
type Store struct {
	settings *models.Settings
	caps     *capability.Registry
	logger   *zap.Logger

	sgvs         []models.Entry
	mbgs         []models.Entry
	cal          *models.Calibration
	devicestatus []models.DeviceStatus
	profiles     json.RawMessage

	entries   []models.Entry
	latestSGV *models.Entry

	retro Retro
}

// New creates an empty store.
func New(settings *models.Settings, caps *capability.Registry, logger *zap.Logger) *Store {
	return &Store{
		settings: settings,
		caps:     caps,
		logger:   logger,
	}
}

// ApplyLiveUpdate ingests a live batch. Re-applying a batch that was already
// merged produces no observable change. Records without a mills timestamp
// are skipped; absent collections are treated as empty.
func (s *Store) ApplyLiveUpdate(update *models.DataUpdate, now time.Time) {
	if update == nil {
		return
	}

	s.sgvs = mergeEntries(s.sgvs, update.Sgvs)
	s.mbgs = mergeEntries(s.mbgs, update.Mbgs)

	if update.Cal != nil {
		s.cal = update.Cal
	}
	if update.Profiles != nil {
		s.profiles = update.Profiles
	}

	s.devicestatus = evictOldStatuses(mergeByID(s.devicestatus, update.DeviceStatus), now)

	if len(s.sgvs) > 0 {
		s.latestSGV = &s.sgvs[len(s.sgvs)-1]
	}

	s.deriveEntries(now)
}

// mergeEntries merges incoming records into the existing collection keyed by
// mills, keeping ascending order. Existing records win only position; a
// re-delivered record replaces its earlier copy, which makes duplicate
// delivery a no-op.
func mergeEntries(existing, incoming []models.Entry) []models.Entry {
	if len(incoming) == 0 {
		return existing
	}

	byMills := make(map[int64]models.Entry, len(existing)+len(incoming))
	for _, e := range existing {
		byMills[e.Mills] = e
	}
	for _, e := range incoming {
		if e.Mills == 0 {
			continue
		}
		byMills[e.Mills] = e
	}

	merged := make([]models.Entry, 0, len(byMills))
	for _, e := range byMills {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Mills < merged[j].Mills
	})
	return merged
}

// mergeByID replaces device statuses re-delivered with the same _id and
// appends new ones. Records without an _id are skipped.
func mergeByID(existing, incoming []models.DeviceStatus) []models.DeviceStatus {
	if len(incoming) == 0 {
		return existing
	}

	index := make(map[string]int, len(existing))
	for i, d := range existing {
		index[d.ID] = i
	}

	merged := append([]models.DeviceStatus(nil), existing...)
	for _, d := range incoming {
		if d.ID == "" {
			continue
		}
		if i, ok := index[d.ID]; ok {
			merged[i] = d
		} else {
			index[d.ID] = len(merged)
			merged = append(merged, d)
		}
	}
	return merged
}

// evictOldStatuses drops device statuses past the retention horizon, keeping
// the live collection bounded. Records that never carried a mills timestamp
// are kept.
func evictOldStatuses(statuses []models.DeviceStatus, now time.Time) []models.DeviceStatus {
	tooOld := now.Add(-RetentionHorizon).UnixMilli()
	kept := statuses[:0]
	for _, d := range statuses {
		if d.Mills == 0 || d.Mills > tooOld {
			kept = append(kept, d)
		}
	}
	return kept
}

// MergeDeviceStatus overlays live fields on retro records sharing an _id and
// appends live records with no retro counterpart. The result contains the
// union of identities with no duplicates.
func MergeDeviceStatus(retro, live []models.DeviceStatus) []models.DeviceStatus {
	if retro == nil {
		return live
	}

	liveByID := make(map[string]models.DeviceStatus, len(live))
	for _, d := range live {
		liveByID[d.ID] = d
	}

	result := make([]models.DeviceStatus, 0, len(retro)+len(live))
	seen := make(map[string]bool, len(retro))
	for _, r := range retro {
		if l, ok := liveByID[r.ID]; ok {
			result = append(result, r.Merge(l))
		} else {
			result = append(result, r)
		}
		seen[r.ID] = true
	}

	for _, l := range live {
		if !seen[l.ID] {
			result = append(result, l)
		}
	}
	return result
}

// MergedDeviceStatus returns the live device statuses with the retro overlay
// applied when retro data is loaded.
func (s *Store) MergedDeviceStatus() []models.DeviceStatus {
	if s.retro.Data != nil {
		return MergeDeviceStatus(s.retro.Data.DeviceStatus, s.devicestatus)
	}
	return s.devicestatus
}

// deriveEntries projects the raw collections into the unified entries view:
// optional raw-BG reconstruction, display colors from thresholds, retention
// eviction and ascending mills order.
func (s *Store) deriveEntries(now time.Time) {
	settings := s.settings.Clone()

	entries := make([]models.Entry, 0, 2*len(s.sgvs)+len(s.mbgs))

	if s.cal != nil && settings.EnableRawBG {
		for i := range s.sgvs {
			e := &s.sgvs[i]
			if !s.caps.RawBG.Show(e, s.cal) {
				continue
			}
			raw := s.caps.RawBG.Calc(e, s.cal)
			if raw <= 0 {
				continue
			}
			entries = append(entries, models.Entry{
				Mills: e.Mills - 2000,
				Mgdl:  raw,
				Color: "white",
				Type:  models.TypeRawBG,
			})
		}
	}

	for _, e := range s.sgvs {
		entries = append(entries, models.Entry{
			Mills:      e.Mills,
			Mgdl:       e.Mgdl,
			Direction:  e.Direction,
			Color:      settings.Thresholds.BGColor(e.Mgdl, settings.Theme),
			Range:      settings.Thresholds.ColoredRange(e.Mgdl, settings.Theme),
			Type:       models.TypeSGV,
			Noise:      e.Noise,
			Filtered:   e.Filtered,
			Unfiltered: e.Unfiltered,
		})
	}

	for _, e := range s.mbgs {
		entries = append(entries, models.Entry{
			Mills:  e.Mills,
			Mgdl:   e.Mgdl,
			Color:  "red",
			Type:   models.TypeMBG,
			Device: e.Device,
		})
	}

	tooOld := now.Add(-RetentionHorizon).UnixMilli()
	kept := entries[:0]
	for _, e := range entries {
		if e.Mills > tooOld {
			kept = append(kept, e)
		}
	}
	entries = kept

	for i := range entries {
		if entries[i].Mgdl < models.MinMeaningfulMgdl {
			entries[i].Color = "transparent"
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Mills < entries[j].Mills
	})

	s.entries = entries
}

// Entries returns the derived entry projection.
func (s *Store) Entries() []models.Entry {
	return s.entries
}

// DataExtent returns the [earliest, latest] range of the derived entries,
// falling back to the last 48 hours when empty.
func (s *Store) DataExtent(now time.Time) [2]time.Time {
	if len(s.entries) > 0 {
		return [2]time.Time{
			s.entries[0].Date(),
			s.entries[len(s.entries)-1].Date(),
		}
	}
	return [2]time.Time{now.Add(-RetentionHorizon), now}
}

// LatestSGV returns the most recent sensor reading, or nil before any data
// has arrived.
func (s *Store) LatestSGV() *models.Entry {
	return s.latestSGV
}

// PreviousSGV returns the reading before the latest one, for delta display.
func (s *Store) PreviousSGV() *models.Entry {
	if len(s.sgvs) < 2 {
		return nil
	}
	return &s.sgvs[len(s.sgvs)-2]
}

// SGVBefore returns the last sensor entry at or before the given time, used
// when the focus window is scrolled into the past.
func (s *Store) SGVBefore(t time.Time) *models.Entry {
	mills := t.UnixMilli()
	var found *models.Entry
	for i := range s.entries {
		if s.entries[i].Type != models.TypeSGV {
			continue
		}
		if s.entries[i].Mills > mills {
			break
		}
		found = &s.entries[i]
	}
	return found
}
