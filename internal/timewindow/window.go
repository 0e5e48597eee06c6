// Package timewindow owns the observation window over the data: its fixed
// focus width, its position, and whether the client is looking at live or
// retrospective data.
package timewindow

import (
	"time"

	"go.uber.org/zap"
)

// Mode is the window state: following the live edge or scrolled into the
// past.
type Mode int

const (
	ModeLive Mode = iota
	ModeRetro
)

func (m Mode) String() string {
	if m == ModeRetro {
		return "retro"
	}
	return "live"
}

// Window is a half-open observation interval over the data.
type Window struct {
	Start time.Time
	End   time.Time
}

// Width returns the window duration.
func (w Window) Width() time.Duration {
	return w.End.Sub(w.Start)
}

// Controller keeps the focus window consistent with arriving data and user
// interaction. All methods must be called from the dispatch goroutine.
type Controller struct {
	focusRange time.Duration
	window     Window
	mode       Mode
	logger     *zap.Logger

	// onChange propagates the normalized window to the rendering
	// collaborator.
	onChange func(Window)
	// persistFocus records a focus-range preference change.
	persistFocus func(hours int)
}

// New creates a controller with the given focus width.
func New(focusRange time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		focusRange: focusRange,
		mode:       ModeLive,
		logger:     logger,
	}
}

// OnChange registers the window propagation callback.
func (c *Controller) OnChange(fn func(Window)) {
	c.onChange = fn
}

// OnPersistFocus registers the preference persistence callback.
func (c *Controller) OnPersistFocus(fn func(hours int)) {
	c.persistFocus = fn
}

// FocusRange returns the configured focus width.
func (c *Controller) FocusRange() time.Duration {
	return c.focusRange
}

// SetFocusRange changes the focus width and persists the preference. It does
// not re-normalize the window; callers follow up with Brushed.
func (c *Controller) SetFocusRange(d time.Duration) {
	c.focusRange = d
	if c.persistFocus != nil {
		c.persistFocus(int(d / time.Hour))
	}
}

// Window returns the current window.
func (c *Controller) Window() Window {
	return c.window
}

// InRetroMode reports whether the window's right edge is not the live edge.
func (c *Controller) InRetroMode() bool {
	return c.mode == ModeRetro
}

// UpdateToNow snaps the window to the live edge of the data extent and
// returns to live mode.
func (c *Controller) UpdateToNow(extent [2]time.Time) Window {
	c.mode = ModeLive
	return c.Brushed(nil, extent)
}

// Brushed normalizes the window against the data extent. With no user
// extent, the window defaults to the most recent focus period. A window that
// is not exactly the focus width is re-anchored: on its end when extending
// the start would pass the data extent's end, on its start otherwise. The
// result never both violates the fixed width and extends past available
// data.
func (c *Controller) Brushed(userExtent *Window, extent [2]time.Time) Window {
	window := Window{
		Start: extent[1].Add(-c.focusRange),
		End:   extent[1],
	}

	if userExtent != nil {
		window = *userExtent
		// A drag away from the live edge enters retro mode; a drag back
		// to it returns to live.
		if window.End.Before(extent[1]) {
			if c.mode != ModeRetro {
				c.logger.Info("entering retro mode", zap.Time("windowEnd", window.End))
			}
			c.mode = ModeRetro
		} else {
			c.mode = ModeLive
		}
	} else {
		// The default window sits on the live edge; retro mode cannot
		// hold it.
		c.mode = ModeLive
	}

	if userExtent == nil || window.Width() != c.focusRange {
		if window.Start.Add(c.focusRange).After(extent[1]) {
			window.Start = window.End.Add(-c.focusRange)
		} else {
			window.End = window.Start.Add(c.focusRange)
		}
	}

	c.window = window
	if c.onChange != nil {
		c.onChange(window)
	}
	return window
}

// ResetToNow leaves retro mode and snaps back to the live edge.
func (c *Controller) ResetToNow(extent [2]time.Time) Window {
	if c.mode == ModeRetro {
		c.logger.Info("leaving retro mode")
	}
	c.mode = ModeLive
	return c.Brushed(nil, extent)
}

// InvalidateRetro forces the controller back to live mode after the retro
// dataset has been dropped for staleness.
func (c *Controller) InvalidateRetro() {
	if c.mode == ModeRetro {
		c.logger.Info("retro data invalidated, returning to live mode")
		c.mode = ModeLive
	}
}

// DisplayTime returns the time shown as "now": the window's right edge in
// retro mode, the wall clock otherwise.
func (c *Controller) DisplayTime(now time.Time) time.Time {
	if c.mode == ModeRetro {
		return c.window.End
	}
	return now
}
