package editsession

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/schedule"
)

type AutoTagOptions struct {
	Countdown   time.Duration
	Poll        time.Duration
	PollCap     time.Duration
	MinChars    int
	WorkspaceID string
	Timeout     time.Duration
	Markdown    lexical.MarkdownOptions
}

// AutoTag generates tags once the user has left the editor alone long enough.
// One timer serves both the typing-idle poll and the countdown, since the two
// never overlap.
type AutoTag struct {
	ctx     context.Context
	loop    *schedule.Loop
	clock   schedule.Clock
	timer   *schedule.Timer
	typing  *Typing
	buffer  editor.Buffer
	gateway gateway.TagGateway
	store   *Store
	signals events.Signals
	logger  logger.ILogger
	opts    AutoTagOptions

	phase          AutoTagPhase
	editedSinceArm bool
	pollStarted    time.Time
	gen            uint64
}

func newAutoTag(ctx context.Context, loop *schedule.Loop, clock schedule.Clock, typing *Typing, buffer editor.Buffer,
	gw gateway.TagGateway, store *Store, signals events.Signals, log logger.ILogger, opts AutoTagOptions) *AutoTag {
	return &AutoTag{
		ctx:     ctx,
		loop:    loop,
		clock:   clock,
		timer:   schedule.NewTimer(loop, clock),
		typing:  typing,
		buffer:  buffer,
		gateway: gw,
		store:   store,
		signals: signals,
		logger:  log,
		opts:    opts,
		phase:   AutoTagDisarmed,
	}
}

func (a *AutoTag) Phase() AutoTagPhase {
	return a.phase
}

func (a *AutoTag) setPhase(phase AutoTagPhase, deadline time.Time) {
	a.phase = phase
	a.store.SetAutoTag(phase, deadline, a.editedSinceArm)
}

// OnEdit records that the buffer changed. It does not disarm; only
// keystrokes and focus do.
func (a *AutoTag) OnEdit() {
	if a.editedSinceArm {
		return
	}
	a.editedSinceArm = true
	a.store.SetAutoTag(a.phase, a.deadline(), true)
}

// OnBlur arms the timer if the buffer was edited since the last arm.
func (a *AutoTag) OnBlur() {
	if !a.editedSinceArm || a.armed() {
		return
	}
	a.editedSinceArm = false

	if a.typing.IsTyping() {
		a.pollStarted = a.clock.Now()
		a.timer.Arm(a.opts.Poll, a.poll)
		a.setPhase(AutoTagWaitingTypingIdle, time.Time{})
		return
	}
	a.startCountdown()
}

func (a *AutoTag) OnFocus() {
	a.cancel("focus")
}

func (a *AutoTag) OnKeystroke() {
	a.cancel("keystroke")
}

func (a *AutoTag) poll() {
	waited := a.clock.Now().Sub(a.pollStarted)
	if a.typing.IsTyping() && waited < a.opts.PollCap {
		a.timer.Arm(a.opts.Poll, a.poll)
		return
	}
	if a.typing.IsTyping() {
		a.logger.Debug("AutoTag", "Typing-idle wait capped, counting down anyway", map[string]interface{}{
			"waited": waited.String(),
		})
	}
	a.startCountdown()
}

func (a *AutoTag) startCountdown() {
	a.timer.Arm(a.opts.Countdown, a.fire)
	deadline, _ := a.timer.Deadline()
	a.setPhase(AutoTagCountingDown, deadline)
}

func (a *AutoTag) cancel(reason string) {
	if !a.armed() {
		return
	}
	a.timer.Disarm()
	a.setPhase(AutoTagCancelled, time.Time{})
	a.logger.Debug("AutoTag", "Auto-tag cancelled", map[string]interface{}{"reason": reason})
}

func (a *AutoTag) fire() {
	a.setPhase(AutoTagFired, time.Time{})

	doc, err := a.buffer.Snapshot()
	if err != nil {
		if !errors.Is(err, editor.ErrDetached) {
			a.logger.Warn("AutoTag", "Snapshot failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(lexical.PlainText(doc))); n < a.opts.MinChars {
		a.logger.Debug("AutoTag", "Content too short, skipping tag generation", map[string]interface{}{
			"chars": n,
			"min":   a.opts.MinChars,
		})
		return
	}

	content := lexical.Markdown(doc, a.opts.Markdown)
	title := a.buffer.Title()
	gen := a.gen
	ctx, cancel := context.WithTimeout(a.ctx, a.opts.Timeout)
	tags := a.gateway
	workspaceID := a.opts.WorkspaceID

	err = a.loop.Go(func() func() {
		result, err := tags.GenerateTags(ctx, title, content, workspaceID)
		cancel()
		return func() { a.resolve(gen, result, err) }
	})
	if err != nil {
		cancel()
	}
}

func (a *AutoTag) resolve(gen uint64, tags []gateway.TagSuggestion, err error) {
	if gen != a.gen {
		return
	}
	if err != nil {
		a.logger.Warn("AutoTag", "Tag generation failed", map[string]interface{}{"error": err.Error()})
		return
	}

	a.store.SetTags(tags)
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	a.logger.Info("AutoTag", "Tags generated", map[string]interface{}{"tags": names})
	a.signals.TagsGenerated(a.ctx, names)
}

func (a *AutoTag) armed() bool {
	return a.phase == AutoTagWaitingTypingIdle || a.phase == AutoTagCountingDown
}

func (a *AutoTag) deadline() time.Time {
	if a.phase != AutoTagCountingDown {
		return time.Time{}
	}
	d, _ := a.timer.Deadline()
	return d
}

func (a *AutoTag) stop() {
	a.timer.Disarm()
	a.gen++
	if a.armed() {
		a.setPhase(AutoTagCancelled, time.Time{})
	}
}
