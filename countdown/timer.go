// Package countdown implements the cancelable per-second countdown that bounds
// a two-factor challenge.
package countdown

import (
	"sync"
	"time"
)

const DefaultTick = time.Second

// Timer counts whole seconds down to zero. Each tick is reported through the
// tick callback and reaching zero fires the expiry callback exactly once.
// Callbacks run on the timer's goroutine. The tick callback must not call
// Start or Cancel: they wait for a tick being delivered.
type Timer struct {
	tick     time.Duration
	onTick   func(remaining int)
	onExpire func()

	// delivering is held while a tick of a live run is reported.
	delivering sync.Mutex

	mu        sync.Mutex
	remaining int
	stop      chan struct{} // nil when idle; identifies the live run
}

type Option func(*Timer)

// WithTick overrides the interval that counts as one second.
func WithTick(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.tick = d
		}
	}
}

func WithOnTick(fn func(remaining int)) Option {
	return func(t *Timer) {
		t.onTick = fn
	}
}

func New(onExpire func(), options ...Option) *Timer {
	t := &Timer{
		tick:     DefaultTick,
		onExpire: onExpire,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Start begins a new countdown of seconds, replacing any running one.
func (t *Timer) Start(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.delivering.Lock()
	defer t.delivering.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop
	t.remaining = seconds
	go t.run(stop)
}

// Cancel stops the countdown and reports whether it stopped a live run, like
// time.Timer.Stop. When it returns true the run never reports another tick
// and never expires. When it returns false the run had already reached zero
// and its final tick and expiry may still be on their way.
func (t *Timer) Cancel() bool {
	t.delivering.Lock()
	defer t.delivering.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	t.remaining = 0
	if t.stop == nil {
		return false
	}
	close(t.stop)
	t.stop = nil
	return true
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if !t.step(stop) {
			return
		}
	}
}

// step counts one second for the run identified by stop and reports whether
// the run goes on.
func (t *Timer) step(stop chan struct{}) bool {
	t.delivering.Lock()
	t.mu.Lock()
	if t.stop != stop {
		t.mu.Unlock()
		t.delivering.Unlock()
		return false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	remaining := t.remaining
	if remaining > 0 {
		t.mu.Unlock()
		if t.onTick != nil {
			t.onTick(remaining)
		}
		t.delivering.Unlock()
		return true
	}

	// zero commits the expiry; Cancel can no longer stop it
	t.stop = nil
	t.mu.Unlock()
	t.delivering.Unlock()
	if t.onTick != nil {
		t.onTick(0)
	}
	if t.onExpire != nil {
		t.onExpire()
	}
	return false
}
