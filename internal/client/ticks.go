package client

import (
	"time"

	"go.uber.org/zap"

	"github.com/mrcode/nightscout-sync/internal/models"
	"github.com/mrcode/nightscout-sync/internal/nightscout"
	"github.com/mrcode/nightscout-sync/internal/timewindow"
	"github.com/mrcode/nightscout-sync/internal/title"
	"github.com/mrcode/nightscout-sync/internal/transport"
)

// onMinuteTick runs the minute-boundary recompute: retro invalidation,
// window refresh, staleness recheck, title recompute and authorization
// refresh.
func (c *Client) onMinuteTick(now time.Time) {
	if c.store.ResetRetroIfNeeded(now) {
		c.window.InvalidateRetro()
	}

	if !c.window.InRetroMode() {
		c.window.Brushed(nil, c.store.DataExtent(now))
	}

	c.engine.CheckStaleness(now)
	c.recomputeTitle(now)
	c.refreshAuthIfNeeded(now)
}

// onStalenessTick is the fast recheck scheduled after updates.
func (c *Client) onStalenessTick(now time.Time) {
	c.engine.CheckStaleness(now)
	c.recomputeTitle(now)
}

// Brushed applies a user drag of the observation window. A nil extent
// resets to the most recent focus period.
func (c *Client) Brushed(userExtent *timewindow.Window) {
	c.dispatcher.Post(func() {
		now := c.now()
		c.window.Brushed(userExtent, c.store.DataExtent(now))
		if c.window.InRetroMode() {
			c.maybeLoadRetro(now)
		}
		c.recomputeTitle(now)
	})
}

// ResetToNow snaps the window back to the live edge.
func (c *Client) ResetToNow() {
	c.dispatcher.Post(func() {
		now := c.now()
		c.window.ResetToNow(c.store.DataExtent(now))
		c.recomputeTitle(now)
	})
}

// SetFocusHours applies a focus-range preference change and re-normalizes
// the window. While scrolled into the past the window is re-anchored on the
// range the user is looking at instead of snapping back to the live edge.
func (c *Client) SetFocusHours(hours int) {
	c.dispatcher.Post(func() {
		c.window.SetFocusRange(time.Duration(hours) * time.Hour)
		extent := c.store.DataExtent(c.now())
		if c.window.InRetroMode() {
			w := c.window.Window()
			c.window.Brushed(&w, extent)
		} else {
			c.window.Brushed(nil, extent)
		}
	})
}

// SetForecastShown records whether a forecast display type is rendered and
// persists the preference.
func (c *Client) SetForecastShown(forecastType string, shown bool) {
	c.dispatcher.Post(func() {
		if shown {
			c.settings.AddForecast(forecastType)
		} else {
			c.settings.RemoveForecast(forecastType)
		}
		if err := c.settings.Save(); err != nil {
			c.logger.Warn("saving settings failed", zap.Error(err))
		}
	})
}

// Acknowledge silences the active alarm for the chosen duration.
func (c *Client) Acknowledge(silence time.Duration) {
	c.dispatcher.Post(func() {
		now := c.now()
		c.engine.Acknowledge(silence, now)
		c.recomputeTitle(now)
	})
}

// maybeLoadRetro requests backfill when the retro dataset is stale and no
// request is already under way.
func (c *Client) maybeLoadRetro(now time.Time) {
	if !c.store.ShouldLoadRetro(now) {
		return
	}
	err := c.transport.Emit(transport.EventLoadRetro, transport.LoadRetro{
		LoadedMills: c.store.RetroLoadedMills(),
	})
	if err != nil {
		c.logger.Warn("loadRetro emit failed", zap.Error(err))
	}
}

// refreshAuthIfNeeded renews a token-based authorization when it is inside
// the renewal margin. The request runs off-thread; its continuation
// re-enters the dispatch queue.
func (c *Client) refreshAuthIfNeeded(now time.Time) {
	if c.authorized == nil || c.authorized.Token == "" {
		return
	}

	issuedSkew := c.authorized.Iat*1000 - c.authorizedAt
	if issuedSkew < 0 {
		issuedSkew = -issuedSkew
	}
	renewAt := c.authorized.Exp*1000 - authRenewMargin.Milliseconds() - issuedSkew
	if now.UnixMilli() <= renewAt {
		return
	}

	token := c.authorized.Token
	c.logger.Info("refreshing authorization")

	go func() {
		auth, err := c.rest.RequestAuthorization(token)
		c.dispatcher.Post(func() {
			if err != nil {
				c.logger.Warn("authorization refresh failed", zap.Error(err))
				return
			}
			c.SetAuthorization(auth)
			c.authorize()
		})
	}()
}

// requestAuthentication asks the REST side channel for a fresh authorization
// after the server denied the socket authorize.
func (c *Client) requestAuthentication() {
	settings := c.settings.Clone()
	if settings.APIToken == "" {
		c.logger.Warn("no token available to request authorization with")
		return
	}

	token := settings.APIToken
	go func() {
		auth, err := c.rest.RequestAuthorization(token)
		c.dispatcher.Post(func() {
			if err != nil {
				c.logger.Warn("authorization request failed", zap.Error(err))
				return
			}
			c.SetAuthorization(auth)
			c.authorize()
		})
	}()
}

// SetAuthorization adopts a server authorization, e.g. from the startup
// status exchange.
func (c *Client) SetAuthorization(auth *nightscout.Authorization) {
	c.authorized = auth
	c.authorizedAt = c.now().UnixMilli()
}

// recomputeTitle rebuilds the displayed status string and pushes it to the
// rendering collaborator when it changed.
func (c *Client) recomputeTitle(now time.Time) {
	settings := c.settings.Clone()
	displayTime := c.window.DisplayTime(now)

	var latest *models.Entry
	if c.window.InRetroMode() {
		latest = c.store.SGVBefore(c.window.Window().End)
	} else {
		latest = c.store.LatestSGV()
	}

	var lastMills int64
	if latest != nil {
		lastMills = latest.Mills
	}

	// A focus point this far behind the window edge has no current value
	// to show; only the age wording remains.
	if c.window.InRetroMode() && latest != nil &&
		displayTime.UnixMilli()-lastMills > focusPointMaxAge.Milliseconds() {
		latest = nil
	}

	status := c.caps.Staleness.Check(lastMills, displayTime.UnixMilli(),
		settings.AlarmTimeagoWarnMins, settings.AlarmTimeagoUrgentMins)

	state := title.State{
		AlarmInProgress: c.engine.InProgress(),
		AlarmMessage:    c.engine.Message(),
		IsTimeAgoAlarm:  c.engine.IsTimeAgoAlarm(),

		StalenessStatus: status,
		Age:             c.caps.Staleness.Display(lastMills, displayTime.UnixMilli()),

		Latest:      latest,
		Delta:       c.caps.Delta.Calc(c.store.PreviousSGV(), latest, settings.Units),
		Units:       settings.Units,
		CustomTitle: settings.CustomTitle,
	}
	if latest != nil {
		state.Direction = c.caps.Direction.Info(latest.Direction)
	}

	announcement := c.engine.CheckAnnouncement(now)
	state.AnnouncementInProgress = announcement.InProgress
	state.AnnouncementMessage = announcement.Message

	c.setTitle(c.composer.Compose(state))
}

func (c *Client) setTitle(t string) {
	if t == c.currentTitle {
		return
	}
	c.currentTitle = t
	c.logger.Info("status", zap.String("title", t))
	if c.onTitle != nil {
		c.onTitle(t)
	}
}

// Title returns the current displayed status string.
func (c *Client) Title() string {
	return c.currentTitle
}

// StalenessStatus returns the current staleness classification for
// collaborators that need it directly.
func (c *Client) StalenessStatus(now time.Time) string {
	settings := c.settings.Clone()
	var lastMills int64
	if latest := c.store.LatestSGV(); latest != nil {
		lastMills = latest.Mills
	}
	return c.caps.Staleness.Check(lastMills, now.UnixMilli(),
		settings.AlarmTimeagoWarnMins, settings.AlarmTimeagoUrgentMins)
}
