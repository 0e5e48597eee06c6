package store

import (
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/models"
)

// Retro dataset timing.
const (
	// RetroFreshness is how long retro data stays valid before it is
	// dropped to free memory.
	RetroFreshness = 5 * time.Minute
	// retroReloadAge is the dataset age beyond which a fresh load is
	// requested.
	retroReloadAge = 3 * time.Minute
	// retroLoadGrace suppresses a second load request while one is in
	// flight.
	retroLoadGrace = 30 * time.Second
)

// Retro is the lazily-fetched retrospective backfill dataset.
type Retro struct {
	LoadedMills      int64 // 0 = never loaded
	LoadStartedMills int64 // 0 = not loading
	Data             *models.RetroUpdate
}

// ResetRetro discards the retro dataset.
func (s *Store) ResetRetro() {
	s.retro = Retro{}
}

// ResetRetroIfNeeded invalidates the retro dataset once it is older than the
// freshness horizon. Returns true when it was cleared.
func (s *Store) ResetRetroIfNeeded(now time.Time) bool {
	if s.retro.LoadedMills > 0 && now.UnixMilli()-s.retro.LoadedMills > RetroFreshness.Milliseconds() {
		s.ResetRetro()
		s.logger.Info("cleared retro data to free memory")
		return true
	}
	return false
}

// ShouldLoadRetro reports whether a loadRetro request should be sent now and
// records the load start when it should. A request started within the last
// 30 seconds suppresses a new one; a fresh load is only initiated when the
// dataset is more than 3 minutes old.
func (s *Store) ShouldLoadRetro(now time.Time) bool {
	nowMills := now.UnixMilli()

	if nowMills-s.retro.LoadStartedMills < retroLoadGrace.Milliseconds() {
		s.logger.Info("retro already loading",
			zap.Time("started", time.UnixMilli(s.retro.LoadStartedMills)))
		return false
	}

	if nowMills-s.retro.LoadedMills > retroReloadAge.Milliseconds() {
		s.retro.LoadStartedMills = nowMills
		s.logger.Info("retro not fresh, load started",
			zap.Time("started", time.UnixMilli(nowMills)))
		return true
	}

	return false
}

// RetroLoadedMills returns when the retro dataset was last populated.
func (s *Store) RetroLoadedMills() int64 {
	return s.retro.LoadedMills
}

// HasRetroData reports whether retro data is currently loaded.
func (s *Store) HasRetroData() bool {
	return s.retro.Data != nil
}

// ApplyRetroUpdate stores a retro backfill response. A response for a load
// superseded by a reset simply repopulates the dataset; there is nothing to
// cancel.
func (s *Store) ApplyRetroUpdate(update *models.RetroUpdate, now time.Time) {
	if update == nil {
		return
	}
	s.retro = Retro{
		LoadedMills: now.UnixMilli(),
		Data:        update,
	}
}
