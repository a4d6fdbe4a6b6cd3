// Package rangingtest provides deterministic doubles for driving a
// ranging.Dispatcher in tests.
package rangingtest

import (
	"rtb-engine/internal/ranging"
	"sort"
	"sync"
	"time"
)

// ManualClock only moves when Advance is called. Expired timers run on the
// caller's goroutine.
type ManualClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*manualTimer
	ignoreStop bool
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
	done     bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) ranging.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*manualTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.deadline.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of armed timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, t := range c.timers {
		if !t.done {
			count++
		}
	}
	return count
}

// IgnoreStop makes Stop report failure and leaves timers armed, as if each
// had already fired concurrently with the cancellation.
func (c *ManualClock) IgnoreStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoreStop = true
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done || t.clock.ignoreStop {
		return false
	}
	t.done = true
	return true
}
