package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatcherPreservesOrder(t *testing.T) {
	d := NewDispatcher(16, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		d.Post(func() {
			got = append(got, i)
			if i == 9 {
				close(done)
			}
		})
	}

	go d.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not drain the mailbox")
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	d := NewDispatcher(1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
