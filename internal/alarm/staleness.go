package alarm

import (
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

// CheckStaleness runs the stale-data sub-machine. It classifies the age of
// the latest reading, raises a synthetic "Time Ago" alarm when the
// classification is warn/urgent, enabled, and not silenced by a previous
// acknowledgement, and auto-clears an active stale-data alarm once data is
// current again. Returns the classification.
func (e *Engine) CheckStaleness(now time.Time) string {
	settings := e.settings.Clone()

	var lastMills int64
	if latest := e.values.LatestSGV(); latest != nil {
		lastMills = latest.Mills
	}

	status := e.caps.Staleness.Check(lastMills, now.UnixMilli(),
		settings.AlarmTimeagoWarnMins, settings.AlarmTimeagoUrgentMins)

	stale := (status == capability.StatusWarn && settings.AlarmTimeagoWarn) ||
		(status == capability.StatusUrgent && settings.AlarmTimeagoUrgent)

	if stale {
		level := models.LevelWarn
		audio := AudioWarning
		if status == capability.StatusUrgent {
			level = models.LevelUrgent
			audio = AudioUrgent
		}

		record := e.Record(level, GroupTimeAgo)
		if record.NotAcked(now.UnixMilli()) {
			display := e.caps.Staleness.Display(lastMills, now.UnixMilli())
			notify := &models.Notify{
				Title: "Last data received " + display.Value + " " + display.Label,
				Level: level,
				Group: GroupTimeAgo,
			}
			e.logger.Info("generating stale data alarm",
				zap.Int("level", level),
				zap.String("title", notify.Title))
			e.generate(audio, notify)
		}
	}

	if e.inProgress && status == capability.StatusCurrent && e.IsTimeAgoAlarm() {
		e.stop(true, staleClearSilence, nil, now)
	}

	return status
}
