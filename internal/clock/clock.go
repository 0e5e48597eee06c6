// Package clock produces the periodic signals driving re-evaluation: a tick
// aligned to the wall-clock minute boundary and a faster staleness recheck
// tick.
package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// minuteSkew keeps the minute tick safely past the boundary.
	minuteSkew = 5 * time.Millisecond
	// StalenessInterval is the delay before a staleness recheck after an
	// update touched staleness-relevant state.
	StalenessInterval = 10 * time.Second
)

// Ticker schedules the periodic signals. Callbacks are delivered through
// post so they run on the dispatch goroutine; at most one pending tick of a
// given kind exists at a time.
type Ticker struct {
	post        func(func())
	onMinute    func(now time.Time)
	onStaleness func(now time.Time)
	logger      *zap.Logger
	now         func() time.Time

	mu          sync.Mutex
	minuteTimer *time.Timer
	staleTimer  *time.Timer
	stopped     bool
}

// New creates a stopped ticker. post delivers callbacks to the dispatch
// goroutine.
func New(post func(func()), onMinute, onStaleness func(now time.Time), logger *zap.Logger) *Ticker {
	return &Ticker{
		post:        post,
		onMinute:    onMinute,
		onStaleness: onStaleness,
		logger:      logger,
		now:         time.Now,
	}
}

// Start schedules the first minute tick.
func (t *Ticker) Start() {
	t.scheduleMinute()
}

// scheduleMinute arms the minute timer for the next wall-clock minute
// boundary plus a small skew. Rearming supersedes any pending instance.
func (t *Ticker) scheduleMinute() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	now := t.now()
	delay := time.Duration(60-now.Second())*time.Second + minuteSkew

	if t.minuteTimer != nil {
		t.minuteTimer.Stop()
	}
	t.minuteTimer = time.AfterFunc(delay, func() {
		t.post(func() {
			t.onMinute(t.now())
		})
		t.scheduleMinute()
	})
}

// KickStaleness (re)arms the staleness recheck 10 seconds out. A pending
// recheck is superseded, never duplicated.
func (t *Ticker) KickStaleness() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if t.staleTimer != nil {
		t.staleTimer.Stop()
	}
	t.staleTimer = time.AfterFunc(StalenessInterval, func() {
		t.post(func() {
			t.onStaleness(t.now())
		})
	})
}

// Stop cancels all pending ticks.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.minuteTimer != nil {
		t.minuteTimer.Stop()
	}
	if t.staleTimer != nil {
		t.staleTimer.Stop()
	}
}
