package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

type fakeSink struct {
	raised  int
	cleared int
	audio   AudioClass
	message string
}

func (f *fakeSink) AlarmRaised(notify *models.Notify, audio AudioClass, message string) {
	f.raised++
	f.audio = audio
	f.message = message
}

func (f *fakeSink) AlarmCleared() {
	f.cleared++
}

type fakeEmitter struct {
	acks []ackCall
}

type ackCall struct {
	level   int
	group   string
	silence time.Duration
}

func (f *fakeEmitter) EmitAck(level int, group string, silence time.Duration) {
	f.acks = append(f.acks, ackCall{level, group, silence})
}

type fakeValues struct {
	latest *models.Entry
}

func (f *fakeValues) LatestSGV() *models.Entry {
	return f.latest
}

type engineFixture struct {
	engine  *Engine
	sink    *fakeSink
	emitter *fakeEmitter
	values  *fakeValues
}

func newFixture(t *testing.T, settings *models.Settings) *engineFixture {
	t.Helper()
	if settings == nil {
		settings = models.DefaultSettings()
	}
	f := &engineFixture{
		sink:    &fakeSink{},
		emitter: &fakeEmitter{},
		values:  &fakeValues{},
	}
	f.engine = New(settings, capability.Defaults(), f.values, f.emitter, f.sink, zap.NewNop())
	return f
}

func TestHandleAlarmRaises(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70} // low reading, AlarmLow enabled

	notify := &models.Notify{Title: "Warning, LOW", Level: models.LevelWarn}
	f.engine.HandleAlarm(notify)

	assert.True(t, f.engine.InProgress())
	assert.Equal(t, "Warning, LOW", f.engine.Message())
	assert.Equal(t, AudioWarning, f.engine.Audio())
	assert.Equal(t, 1, f.sink.raised)
	assert.Equal(t, AudioWarning, f.sink.audio)
}

func TestHandleAlarmDroppedWhenDisabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.AlarmLow = false
	settings.AlarmHigh = false
	f := newFixture(t, settings)
	f.values.latest = &models.Entry{Mgdl: 70}

	f.engine.HandleAlarm(&models.Notify{Title: "Warning, LOW", Level: models.LevelWarn})

	assert.False(t, f.engine.InProgress())
	assert.Zero(t, f.sink.raised)
}

func TestHandleAlarmNoReading(t *testing.T) {
	f := newFixture(t, nil)

	// With no reading neither the high nor low enablement check can pass.
	f.engine.HandleAlarm(&models.Notify{Title: "Warning, LOW", Level: models.LevelWarn})

	assert.False(t, f.engine.InProgress())
}

func TestUrgentAlarmUsesUrgentToggles(t *testing.T) {
	settings := models.DefaultSettings()
	settings.AlarmLow = false // warning toggle must not matter
	f := newFixture(t, settings)
	f.values.latest = &models.Entry{Mgdl: 50}

	f.engine.HandleUrgentAlarm(&models.Notify{Title: "Urgent, LOW", Level: models.LevelUrgent})

	assert.True(t, f.engine.InProgress())
	assert.Equal(t, AudioUrgent, f.engine.Audio())
}

func TestGenerateWhileSoundingKeepsAudio(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70}

	f.engine.HandleAlarm(&models.Notify{Title: "Warning, LOW", Level: models.LevelWarn})
	require.Equal(t, 1, f.sink.raised)

	// A second event while sounding replaces the message but does not
	// re-trigger the sink or change the audio class.
	f.engine.HandleUrgentAlarm(&models.Notify{Title: "Urgent, LOW", Level: models.LevelUrgent})

	assert.Equal(t, 1, f.sink.raised)
	assert.Equal(t, AudioWarning, f.engine.Audio())
	assert.Equal(t, "Urgent, LOW", f.engine.Message())
	assert.Equal(t, models.LevelUrgent, f.engine.CurrentNotify().Level)
}

func TestAcknowledgeSilencesAndEmitsAck(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70}
	now := time.Now()

	notify := &models.Notify{Title: "Warning, LOW", Level: models.LevelWarn, Group: "default"}
	f.engine.HandleAlarm(notify)

	f.engine.Acknowledge(30*time.Minute, now)

	assert.False(t, f.engine.InProgress())
	assert.Empty(t, f.engine.Message())
	assert.Equal(t, 1, f.sink.cleared)

	require.Len(t, f.emitter.acks, 1)
	assert.Equal(t, ackCall{models.LevelWarn, "default", 30 * time.Minute}, f.emitter.acks[0])

	record := f.engine.Record(models.LevelWarn, "default")
	assert.Equal(t, now.UnixMilli(), record.LastAckTime)
	assert.Equal(t, (30 * time.Minute).Milliseconds(), record.SilenceTime)

	// Silenced until the window elapses.
	assert.False(t, record.NotAcked(now.Add(29*time.Minute).UnixMilli()))
	assert.True(t, record.NotAcked(now.Add(30*time.Minute).UnixMilli()))
}

func TestAcknowledgeZeroSilenceUsesDefault(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70}
	now := time.Now()

	f.engine.HandleAlarm(&models.Notify{Title: "Warning, LOW", Level: models.LevelWarn, Group: "default"})
	f.engine.Acknowledge(0, now)

	record := f.engine.Record(models.LevelWarn, "default")
	assert.Equal(t, DefaultSilence.Milliseconds(), record.SilenceTime)
}

func TestHandleClearWhileIdleIsNoOp(t *testing.T) {
	f := newFixture(t, nil)

	f.engine.HandleClear(&models.Notify{Level: models.LevelWarn, Group: "default"}, time.Now())

	assert.Zero(t, f.sink.cleared)
	assert.Empty(t, f.emitter.acks)
}

func TestHandleClearRecordsRemoteAck(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70}
	now := time.Now()

	f.engine.HandleAlarm(&models.Notify{Title: "Warning, LOW", Level: models.LevelWarn, Group: "default"})
	f.engine.HandleClear(&models.Notify{Level: models.LevelWarn, Group: "default"}, now)

	assert.False(t, f.engine.InProgress())
	assert.Equal(t, 1, f.sink.cleared)
	// A remote clear must not echo an ack back to the peer.
	assert.Empty(t, f.emitter.acks)

	record := f.engine.Record(models.LevelWarn, "default")
	assert.Equal(t, now.UnixMilli(), record.LastAckTime)
}

func TestClearAckRecordCascade(t *testing.T) {
	now := time.Now()

	t.Run("clear notify names level and group", func(t *testing.T) {
		f := newFixture(t, nil)
		f.values.latest = &models.Entry{Mgdl: 70}
		f.engine.HandleAlarm(&models.Notify{Title: "t", Level: models.LevelWarn, Group: "default"})

		f.engine.HandleClear(&models.Notify{Level: models.LevelUrgent, Group: "other"}, now)

		assert.NotZero(t, f.engine.Record(models.LevelUrgent, "other").LastAckTime)
		assert.Zero(t, f.engine.Record(models.LevelWarn, "default").LastAckTime)
	})

	t.Run("clear notify names only a group", func(t *testing.T) {
		f := newFixture(t, nil)
		f.values.latest = &models.Entry{Mgdl: 70}
		f.engine.HandleAlarm(&models.Notify{Title: "t", Level: models.LevelWarn, Group: "default"})

		f.engine.HandleClear(&models.Notify{Group: "other"}, now)

		// Level falls back to the active alarm's level.
		assert.NotZero(t, f.engine.Record(models.LevelWarn, "other").LastAckTime)
	})

	t.Run("bare clear falls back to the active alarm", func(t *testing.T) {
		f := newFixture(t, nil)
		f.values.latest = &models.Entry{Mgdl: 70}
		f.engine.HandleAlarm(&models.Notify{Title: "t", Level: models.LevelWarn, Group: "default"})

		f.engine.HandleClear(&models.Notify{}, now)

		assert.NotZero(t, f.engine.Record(models.LevelWarn, "default").LastAckTime)
	})
}

func TestSnoozeOptions(t *testing.T) {
	f := newFixture(t, nil)
	f.values.latest = &models.Entry{Mgdl: 70}

	f.engine.HandleAlarm(&models.Notify{Title: "t", Level: models.LevelWarn})
	assert.Equal(t,
		[]time.Duration{15 * time.Minute, 30 * time.Minute, 45 * time.Minute, 60 * time.Minute},
		f.engine.SnoozeOptions())

	f.engine.HandleUrgentAlarm(&models.Notify{Title: "t", Level: models.LevelUrgent})
	assert.Equal(t,
		[]time.Duration{30 * time.Minute, 60 * time.Minute, 90 * time.Minute, 120 * time.Minute},
		f.engine.SnoozeOptions())
}

func TestIsAlarmForHighAndLow(t *testing.T) {
	f := newFixture(t, nil)

	// No reading: neither direction matches.
	assert.False(t, f.engine.IsAlarmForHigh())
	assert.False(t, f.engine.IsAlarmForLow())

	// In-target reading can be either, predicted alarms may fire early.
	f.values.latest = &models.Entry{Mgdl: 120}
	assert.True(t, f.engine.IsAlarmForHigh())
	assert.True(t, f.engine.IsAlarmForLow())

	f.values.latest = &models.Entry{Mgdl: 250}
	assert.True(t, f.engine.IsAlarmForHigh())
	assert.False(t, f.engine.IsAlarmForLow())

	f.values.latest = &models.Entry{Mgdl: 55}
	assert.False(t, f.engine.IsAlarmForHigh())
	assert.True(t, f.engine.IsAlarmForLow())
}
