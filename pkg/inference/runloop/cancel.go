package runloop

import (
	"context"
	"sync/atomic"
)

// cancelMonitor converts context cancellation into a synchronous flag. A
// listener goroutine flips the flag as soon as the context is done, so the
// consumption loop observes cancellation between deltas without blocking on
// the context itself.
type cancelMonitor struct {
	flag atomic.Bool
	done chan struct{}
}

func newCancelMonitor(ctx context.Context) *cancelMonitor {
	m := &cancelMonitor{
		done: make(chan struct{}),
	}
	if ctx.Err() != nil {
		m.flag.Store(true)
		return m
	}
	go func() {
		select {
		case <-ctx.Done():
			m.flag.Store(true)
		case <-m.done:
		}
	}()
	return m
}

func (m *cancelMonitor) cancelled() bool {
	return m.flag.Load()
}

// release stops the listener. Safe to call once.
func (m *cancelMonitor) release() {
	close(m.done)
}
