// Package alarm runs the alarm lifecycle: raise, escalate, snooze,
// acknowledge and auto-clear, synchronized with the remote peer through ack
// messages.
package alarm

import (
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

// AudioClass selects which alert sound class a raised alarm uses.
type AudioClass string

const (
	AudioWarning AudioClass = "warning"
	AudioUrgent  AudioClass = "urgent"
)

// GroupTimeAgo is the alarm group for synthetic stale-data alarms.
const GroupTimeAgo = "Time Ago"

// DefaultSilence is applied when an acknowledgement carries no duration.
const DefaultSilence = 5 * time.Minute

// staleClearSilence is the short silence recorded when a stale-data alarm
// auto-clears because data became current again.
const staleClearSilence = time.Minute

// AnnouncementWindow is how long an announcement overrides the title.
const AnnouncementWindow = 5 * time.Minute

// Sink receives alarm lifecycle events for visualization.
type Sink interface {
	AlarmRaised(notify *models.Notify, audio AudioClass, message string)
	AlarmCleared()
}

// AckEmitter sends acknowledgements to the remote peer.
type AckEmitter interface {
	EmitAck(level int, group string, silenceTime time.Duration)
}

// ValueSource provides the latest sensor reading for enablement checks.
type ValueSource interface {
	LatestSGV() *models.Entry
}

// Engine is the alarm state machine: at most one alarm in progress, plus a
// registry of per-(level, group) acknowledgement records. All methods must
// be called from the dispatch goroutine.
type Engine struct {
	settings *models.Settings
	caps     *capability.Registry
	values   ValueSource
	emitter  AckEmitter
	sink     Sink
	logger   *zap.Logger

	records map[string]*models.AlarmRecord

	inProgress    bool
	audio         AudioClass
	currentNotify *models.Notify
	message       string

	announcement         *models.Notify
	announcementReceived int64
}

// New creates an idle engine.
func New(settings *models.Settings, caps *capability.Registry, values ValueSource, emitter AckEmitter, sink Sink, logger *zap.Logger) *Engine {
	return &Engine{
		settings: settings,
		caps:     caps,
		values:   values,
		emitter:  emitter,
		sink:     sink,
		logger:   logger,
		records:  make(map[string]*models.AlarmRecord),
	}
}

// InProgress reports whether an alarm is active.
func (e *Engine) InProgress() bool {
	return e.inProgress
}

// Message returns the displayed alarm message, or "" when idle.
func (e *Engine) Message() string {
	return e.message
}

// CurrentNotify returns the notify behind the active alarm.
func (e *Engine) CurrentNotify() *models.Notify {
	return e.currentNotify
}

// Audio returns the sound class of the active alarm.
func (e *Engine) Audio() AudioClass {
	return e.audio
}

// IsTimeAgoAlarm reports whether the active alarm is a stale-data alarm.
func (e *Engine) IsTimeAgoAlarm() bool {
	return e.currentNotify != nil && e.currentNotify.Group == GroupTimeAgo
}

// Record returns the acknowledgement record for a (level, group) pair,
// creating it on first reference.
func (e *Engine) Record(level int, group string) *models.AlarmRecord {
	key := models.AlarmKey(level, group)
	record, ok := e.records[key]
	if !ok {
		record = &models.AlarmRecord{Level: level, Group: group}
		e.records[key] = record
	}
	return record
}

// IsAlarmForHigh reports whether an alarm event can be for a HIGH. With
// predicted alarms the latest reading may still be in target, so this only
// checks against the bottom of the target range.
func (e *Engine) IsAlarmForHigh() bool {
	latest := e.values.LatestSGV()
	return latest != nil && latest.Mgdl >= float64(e.settings.Thresholds.BGTargetBottom)
}

// IsAlarmForLow reports whether an alarm event can be for a LOW; the mirror
// of IsAlarmForHigh against the top of the target range.
func (e *Engine) IsAlarmForLow() bool {
	latest := e.values.LatestSGV()
	return latest != nil && latest.Mgdl <= float64(e.settings.Thresholds.BGTargetTop)
}

// HandleAlarm processes a warning-level alarm event. Events disabled by
// local toggles are dropped with no state change.
func (e *Engine) HandleAlarm(notify *models.Notify) {
	settings := e.settings.Clone()
	enabled := (e.IsAlarmForHigh() && settings.AlarmHigh) || (e.IsAlarmForLow() && settings.AlarmLow)
	if !enabled {
		e.logger.Info("alarm was disabled locally", zap.String("title", notify.Title))
		return
	}
	e.logger.Info("alarm raised", zap.String("title", notify.Title))
	e.generate(AudioWarning, notify)
}

// HandleUrgentAlarm processes an urgent alarm event.
func (e *Engine) HandleUrgentAlarm(notify *models.Notify) {
	settings := e.settings.Clone()
	enabled := (e.IsAlarmForHigh() && settings.AlarmUrgentHigh) || (e.IsAlarmForLow() && settings.AlarmUrgentLow)
	if !enabled {
		e.logger.Info("urgent alarm was disabled locally", zap.String("title", notify.Title))
		return
	}
	e.logger.Info("urgent alarm raised", zap.String("title", notify.Title))
	e.generate(AudioUrgent, notify)
}

// generate activates or updates the alarm. While an alarm is already
// sounding the message and current notify are replaced but the sounding
// state and audio class are left alone, even when the new event's severity
// differs. That matches the historic client behavior; whether the audio
// class should escalate too is an open question there as well.
func (e *Engine) generate(audio AudioClass, notify *models.Notify) {
	wasSounding := e.inProgress

	e.inProgress = true
	e.currentNotify = notify
	e.message = notify.DisplayMessage()

	if !wasSounding {
		e.audio = audio
		e.sink.AlarmRaised(notify, audio, e.message)
	}
}

// SnoozeOptions returns the snooze durations to offer for the active alarm.
func (e *Engine) SnoozeOptions() []time.Duration {
	mins := e.settings.SnoozeMinsForAlarmEvent(e.currentNotify)
	options := make([]time.Duration, len(mins))
	for i, m := range mins {
		options[i] = time.Duration(m) * time.Minute
	}
	return options
}

// Acknowledge silences the active alarm locally for the chosen duration and
// notifies the remote peer.
func (e *Engine) Acknowledge(silence time.Duration, now time.Time) {
	e.stop(true, silence, nil, now)
}

// HandleClear processes a clear_alarm event from the remote peer. A clear
// with no alarm in progress is a no-op.
func (e *Engine) HandleClear(notify *models.Notify, now time.Time) {
	if !e.inProgress {
		e.logger.Info("got clear_alarm while idle, ignoring")
		return
	}
	e.logger.Info("clearing alarm")
	e.stop(false, 0, notify, now)
}

// stop deactivates the alarm, records the acknowledgement on the matching
// (level, group) record and, for local acknowledgements only, emits an ack
// to the peer.
func (e *Engine) stop(isLocal bool, silence time.Duration, notify *models.Notify, now time.Time) {
	e.inProgress = false
	e.message = ""
	e.sink.AlarmCleared()

	if silence <= 0 {
		silence = DefaultSilence
	}

	var record *models.AlarmRecord
	switch {
	case notify != nil && notify.Level != 0:
		record = e.Record(notify.Level, notify.Group)
	case notify != nil && notify.Group != "" && e.currentNotify != nil:
		record = e.Record(e.currentNotify.Level, notify.Group)
	case e.currentNotify != nil:
		record = e.Record(e.currentNotify.Level, e.currentNotify.Group)
	}

	if record != nil {
		record.LastAckTime = now.UnixMilli()
		record.SilenceTime = silence.Milliseconds()
	} else {
		e.logger.Info("no alarm record to ack")
	}

	// only tell the peer when the user silenced it here
	if isLocal && e.currentNotify != nil {
		e.emitter.EmitAck(e.currentNotify.Level, e.currentNotify.Group, silence)
	}

	e.currentNotify = nil
}
