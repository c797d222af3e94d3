package schedule

import "time"

// Timer is the single cancellable-timer primitive shared by the save debounce,
// the typing-idle tracker and the auto-tag countdown.
//
// Arm and Disarm must be called from the loop. Expiry is delivered as a loop
// task; a callback that lost a race against Disarm or a re-Arm is dropped.
type Timer struct {
	loop     *Loop
	clock    Clock
	gen      uint64
	stop     Stopper
	deadline time.Time
}

func NewTimer(loop *Loop, clock Clock) *Timer {
	return &Timer{loop: loop, clock: clock}
}

// Arm replaces any pending callback with cb, due after delay.
func (t *Timer) Arm(delay time.Duration, cb func()) {
	t.Disarm()
	t.gen++
	gen := t.gen
	t.deadline = t.clock.Now().Add(delay)

	loop := t.loop
	t.stop = t.clock.AfterFunc(delay, func() {
		_ = loop.Post(func() {
			if t.gen != gen || t.stop == nil {
				return
			}
			t.stop = nil
			cb()
		})
	})
}

// Disarm cancels the pending callback. It reports whether one was pending.
func (t *Timer) Disarm() bool {
	if t.stop == nil {
		return false
	}
	t.stop.Stop()
	t.stop = nil
	t.gen++
	return true
}

func (t *Timer) Armed() bool {
	return t.stop != nil
}

// Deadline returns when the pending callback is due.
func (t *Timer) Deadline() (time.Time, bool) {
	if t.stop == nil {
		return time.Time{}, false
	}
	return t.deadline, true
}
