// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at the given time. Nothing fires
// until Advance moves the clock past a deadline.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. Timers, tickers, and
// sleeps register pending entries that fire, in deadline order, when
// Advance moves the clock past them.
//
// AfterFunc callbacks run synchronously inside Advance. Calling Sleep
// or Advance from inside such a callback deadlocks.
type FakeClock struct {
	mu         sync.Mutex
	current    time.Time
	pending    []*pendingTimer
	registered *sync.Cond
}

// pendingTimer is one scheduled After, AfterFunc, Sleep, or Ticker
// entry.
type pendingTimer struct {
	deadline time.Time

	// ch receives the fire time for After, Sleep, and Ticker entries;
	// nil for AfterFunc entries.
	ch chan time.Time

	// fn runs synchronously during Advance for AfterFunc entries; nil
	// otherwise.
	fn func()

	// interval is non-zero for tickers, which reschedule themselves
	// at deadline + interval after firing.
	interval time.Duration

	// stopped entries are skipped and dropped at the next Advance.
	stopped bool

	// fired marks a one-shot entry that has already gone off, so an
	// overlapping Advance cannot fire it twice.
	fired bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock advances by d.
// If d <= 0 the channel receives immediately without registering.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.pending = append(c.pending, &pendingTimer{
		deadline: c.current.Add(d),
		ch:       ch,
	})
	c.registered.Broadcast()
	return ch
}

// AfterFunc schedules f to run when the clock advances by d. The
// returned Timer's C is nil. If d <= 0, f runs synchronously before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()

	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	entry := &pendingTimer{
		deadline: c.current.Add(d),
		fn:       f,
	}
	c.pending = append(c.pending, entry)
	c.registered.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if entry.stopped || entry.fired {
				return false
			}
			entry.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := !entry.stopped && !entry.fired
			entry.stopped = false
			entry.fired = false
			entry.deadline = c.current.Add(d)
			// A fired entry was removed from the pending list and
			// must be re-registered.
			if !wasActive {
				c.pending = append(c.pending, entry)
				c.registered.Broadcast()
			}
			return wasActive
		},
	}
}

// NewTicker returns a Ticker firing every d. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	entry := &pendingTimer{
		deadline: c.current.Add(d),
		ch:       ch,
		interval: d,
	}
	c.pending = append(c.pending, entry)
	c.registered.Broadcast()

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.stopped = true
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.interval = d
			entry.deadline = c.current.Add(d)
			entry.stopped = false
		},
	}
}

// Sleep blocks until the clock advances by d. Returns immediately for
// d <= 0.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every pending entry
// whose deadline falls within the new time, in deadline order.
//
// AfterFunc callbacks run synchronously in the calling goroutine.
// Channel sends are non-blocking; a tick that finds its buffer full is
// dropped, matching time.Ticker.
//
// Callbacks may register new timers; the fire loop re-collects until
// no expired entries remain, so a chain of short timers inside one
// Advance resolves fully.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}

		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})

		for _, entry := range expired {
			switch {
			case entry.fn != nil:
				entry.fn()
			case entry.ch != nil:
				select {
				case entry.ch <- target:
				default:
				}
			}
		}
	}
}

// takeExpired removes entries due at or before target from the pending
// list, reschedules tickers, and returns what should fire.
func (c *FakeClock) takeExpired(target time.Time) []*pendingTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*pendingTimer
	for _, entry := range c.pending {
		switch {
		case entry.stopped:
			// Dropped.
		case !entry.deadline.After(target):
			expired = append(expired, entry)
		default:
			remaining = append(remaining, entry)
		}
	}

	for _, entry := range expired {
		if entry.interval > 0 {
			entry.deadline = entry.deadline.Add(entry.interval)
			remaining = append(remaining, entry)
		} else {
			entry.fired = true
		}
	}

	c.pending = remaining
	return expired
}

// WaitForTimers blocks until at least n entries are pending. Tests use
// this to close the race between a goroutine registering its timer and
// the test advancing the clock:
//
//	go subscription.Connect()
//	fakeClock.WaitForTimers(1)     // reconnect timer registered
//	fakeClock.Advance(time.Second) // fires it deterministically
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeCount() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of active pending entries.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeCount()
}

// activeCount counts non-stopped entries. Caller holds c.mu.
func (c *FakeClock) activeCount() int {
	count := 0
	for _, entry := range c.pending {
		if !entry.stopped {
			count++
		}
	}
	return count
}
