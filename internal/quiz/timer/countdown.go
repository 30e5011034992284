// Package timer provides the one-shot quiz countdown.
package timer

import (
	"sync"
	"time"
)

// Countdown counts whole seconds down from a starting duration and invokes its
// expiry callback exactly once when it reaches zero. A countdown started with a
// non-positive duration is inert.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	cancelled bool
	stopCh    chan struct{}
	done      chan struct{}
}

// Start begins a countdown driven by a one second wall-clock ticker.
func Start(durationSeconds int, onExpire func()) *Countdown {
	if durationSeconds <= 0 {
		return inert()
	}
	ticker := time.NewTicker(time.Second)
	c := StartWithTicks(durationSeconds, ticker.C, onExpire)
	go func() {
		<-c.done
		ticker.Stop()
	}()
	return c
}

// StartWithTicks is Start with an externally supplied tick source. Each value
// received from ticks counts as one elapsed second.
func StartWithTicks(durationSeconds int, ticks <-chan time.Time, onExpire func()) *Countdown {
	if durationSeconds <= 0 {
		return inert()
	}
	c := &Countdown{
		remaining: durationSeconds,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.run(ticks, onExpire)
	return c
}

func inert() *Countdown {
	c := &Countdown{
		cancelled: true,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	close(c.stopCh)
	close(c.done)
	return c
}

func (c *Countdown) run(ticks <-chan time.Time, onExpire func()) {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			if c.tick(onExpire) {
				return
			}
		}
	}
}

// tick decrements the counter and reports whether the countdown is finished.
// onExpire runs under the lock so a concurrent Cancel either wins outright or
// observes the fired state.
func (c *Countdown) tick(onExpire func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled || c.fired {
		return true
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	c.remaining = 0
	c.fired = true
	if onExpire != nil {
		onExpire()
	}
	return true
}

// Cancel stops the countdown. It is safe to call more than once and after expiry.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return
	}
	c.cancelled = true
	close(c.stopCh)
}

// Remaining returns the whole seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Fired reports whether the expiry callback has run.
func (c *Countdown) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
