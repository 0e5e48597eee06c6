package title

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrcode/nightscout-sync/internal/capability"
	"github.com/mrcode/nightscout-sync/internal/models"
)

func currentState() State {
	return State{
		StalenessStatus: capability.StatusCurrent,
		Latest:          &models.Entry{Mgdl: 120},
		Delta:           &capability.DeltaResult{Mgdl: 5, Display: "+5"},
		Direction:       capability.DirectionResult{Value: "Flat", Label: "→"},
		Units:           "mg/dl",
		CustomTitle:     "Nightscout",
	}
}

func TestStatus(t *testing.T) {
	c := NewComposer(capability.CodeTable{})

	t.Run("current reading", func(t *testing.T) {
		assert.Equal(t, "120 +5 →", c.Status(currentState()))
	})

	t.Run("mmol units", func(t *testing.T) {
		s := currentState()
		s.Units = "mmol"
		s.Latest = &models.Entry{Mgdl: 180}
		assert.Equal(t, "10.0 +5 →", c.Status(s))
	})

	t.Run("stale reading shows age", func(t *testing.T) {
		s := currentState()
		s.StalenessStatus = capability.StatusWarn
		s.Age = capability.AgeDisplay{Value: "25", Label: "mins ago"}
		assert.Equal(t, "25 mins ago", c.Status(s))
	})

	t.Run("clamped readings show edge words", func(t *testing.T) {
		s := currentState()
		s.Latest = &models.Entry{Mgdl: 401}
		assert.Equal(t, "HIGH +5 →", c.Status(s))

		s.Latest = &models.Entry{Mgdl: 40}
		assert.Equal(t, "LOW +5 →", c.Status(s))
	})

	t.Run("error code", func(t *testing.T) {
		s := currentState()
		s.Latest = &models.Entry{Mgdl: 5}
		assert.Equal(t, "?NC", c.Status(s))
	})

	t.Run("no data yet", func(t *testing.T) {
		s := currentState()
		s.Latest = nil
		assert.Equal(t, "", c.Status(s))
	})

	t.Run("no delta yet", func(t *testing.T) {
		s := currentState()
		s.Delta = nil
		assert.Equal(t, "", c.Status(s))
	})
}

func TestCompose(t *testing.T) {
	c := NewComposer(capability.CodeTable{})

	t.Run("alarm wins", func(t *testing.T) {
		s := currentState()
		s.AlarmInProgress = true
		s.AlarmMessage = "Urgent, LOW"
		assert.Equal(t, "Urgent, LOW: 120 +5 →", c.Compose(s))
	})

	t.Run("stale alarm is shown bare", func(t *testing.T) {
		s := currentState()
		s.AlarmInProgress = true
		s.IsTimeAgoAlarm = true
		s.AlarmMessage = "Last data received 25 mins ago"
		s.StalenessStatus = capability.StatusWarn
		s.Age = capability.AgeDisplay{Value: "25", Label: "mins ago"}
		assert.Equal(t, "Last data received 25 mins ago", c.Compose(s))
	})

	t.Run("announcement beats generated status", func(t *testing.T) {
		s := currentState()
		s.AnnouncementInProgress = true
		s.AnnouncementMessage = "Warning: Pump site changed"
		assert.Equal(t, "Warning: Pump site changed: 120 +5 →", c.Compose(s))
	})

	t.Run("alarm beats announcement", func(t *testing.T) {
		s := currentState()
		s.AlarmInProgress = true
		s.AlarmMessage = "Urgent, LOW"
		s.AnnouncementInProgress = true
		s.AnnouncementMessage = "Warning: Pump site changed"
		assert.Equal(t, "Urgent, LOW: 120 +5 →", c.Compose(s))
	})

	t.Run("generated status on its own", func(t *testing.T) {
		assert.Equal(t, "120 +5 →", c.Compose(currentState()))
	})

	t.Run("custom title when nothing to show", func(t *testing.T) {
		s := currentState()
		s.Latest = nil
		assert.Equal(t, "Nightscout", c.Compose(s))
	})
}
