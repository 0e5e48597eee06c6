package transport

import (
	"context"

	"go.uber.org/zap"
)

// Dispatcher is the single-threaded event queue. Every mutation of shared
// state runs as a function posted here, so handlers never run concurrently
// and messages are processed strictly in arrival order.
type Dispatcher struct {
	mailbox chan func()
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher with a bounded mailbox.
func NewDispatcher(size int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailbox: make(chan func(), size),
		logger:  logger,
	}
}

// Post queues fn for execution on the dispatch goroutine. Blocks when the
// mailbox is full, which preserves arrival order under backpressure.
func (d *Dispatcher) Post(fn func()) {
	d.mailbox <- fn
}

// Run executes posted functions until the context is cancelled. It is the
// only goroutine that touches client state.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case fn := <-d.mailbox:
			fn()
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		}
	}
}
