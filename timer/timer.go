// Package timer provides frame-driven timers advanced by elapsed time
// rather than by the wall clock.
package timer

import "time"

// Repeat fires at most once per interval. It is advanced explicitly with
// the elapsed time of each frame, so it never fires before the interval has
// accumulated and never fires more than once per Update call.
type Repeat struct {
	delay    time.Duration
	interval time.Duration
	elapsed  time.Duration
	started  bool
	paused   bool
}

// NewRepeat returns a timer that waits delay before counting the first
// interval. A non-positive interval is clamped to one nanosecond.
func NewRepeat(delay, interval time.Duration) *Repeat {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	if delay < 0 {
		delay = 0
	}
	return &Repeat{delay: delay, interval: interval}
}

// Interval returns the configured repeat interval.
func (t *Repeat) Interval() time.Duration {
	return t.interval
}

// Update advances the timer by dt and reports whether it fired.
// Any surplus beyond the interval is discarded when the timer fires.
func (t *Repeat) Update(dt time.Duration) bool {
	if t.paused || dt <= 0 {
		return false
	}

	t.elapsed += dt
	if !t.started {
		if t.elapsed < t.delay {
			return false
		}
		t.elapsed -= t.delay
		t.started = true
	}

	if t.elapsed < t.interval {
		return false
	}
	t.elapsed = 0
	return true
}

// Reset clears accumulated time, including the initial delay.
func (t *Repeat) Reset() {
	t.elapsed = 0
	t.started = false
}

func (t *Repeat) Pause()  { t.paused = true }
func (t *Repeat) Resume() { t.paused = false }
