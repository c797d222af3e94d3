package editsession

import (
	"time"

	"ai-notetaking-editor/pkg/schedule"
)

// Typing tracks whether the user is mid-burst. Every keystroke pushes the
// quiet deadline out; the auto-tag timer polls IsTyping.
type Typing struct {
	timer  *schedule.Timer
	clock  schedule.Clock
	store  *Store
	quiet  time.Duration
	typing bool
}

func newTyping(loop *schedule.Loop, clock schedule.Clock, store *Store, quiet time.Duration) *Typing {
	return &Typing{
		timer: schedule.NewTimer(loop, clock),
		clock: clock,
		store: store,
		quiet: quiet,
	}
}

func (t *Typing) Touch() {
	t.typing = true
	t.timer.Arm(t.quiet, func() {
		t.typing = false
		t.store.SetTyping(false, time.Time{})
	})
	deadline, _ := t.timer.Deadline()
	t.store.SetTyping(true, deadline)
}

func (t *Typing) IsTyping() bool {
	return t.typing
}

func (t *Typing) stop() {
	t.timer.Disarm()
	t.typing = false
}
