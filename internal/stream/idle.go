package stream

import (
	"io"
	"sync"
	"time"
)

// IdleCloser closes the wrapped body when no read completes within timeout,
// turning a silent connection into an ErrStreamIdle read error.
type IdleCloser struct {
	rc      io.ReadCloser
	timeout time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	timedOut bool
	closed   bool
}

// NewIdleCloser wraps rc. A zero timeout disables the watchdog.
func NewIdleCloser(rc io.ReadCloser, timeout time.Duration) *IdleCloser {
	ic := &IdleCloser{rc: rc, timeout: timeout}
	if timeout > 0 {
		ic.timer = time.AfterFunc(timeout, ic.expire)
	}
	return ic
}

func (ic *IdleCloser) expire() {
	ic.mu.Lock()
	if ic.closed {
		ic.mu.Unlock()
		return
	}
	ic.timedOut = true
	ic.mu.Unlock()

	_ = ic.rc.Close()
}

func (ic *IdleCloser) Read(p []byte) (int, error) {
	n, err := ic.rc.Read(p)

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.timedOut {
		return n, ErrStreamIdle
	}
	if ic.timer != nil && n > 0 {
		ic.timer.Reset(ic.timeout)
	}
	return n, err
}

func (ic *IdleCloser) Close() error {
	ic.mu.Lock()
	if ic.closed {
		ic.mu.Unlock()
		return nil
	}
	ic.closed = true
	if ic.timer != nil {
		ic.timer.Stop()
	}
	timedOut := ic.timedOut
	ic.mu.Unlock()

	if timedOut {
		// already closed by expire
		return nil
	}
	return ic.rc.Close()
}
