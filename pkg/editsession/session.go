// Package editsession coordinates one document's edit session: debounced
// saves, manual link triggers, the suggestion popup and idle auto-tagging.
//
// All session state lives on a schedule.Loop. Editor callbacks and network
// results are posted to the loop, so components never need their own locks.
package editsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/schedule"
	"ai-notetaking-editor/pkg/trigger"

	"github.com/google/uuid"
)

var (
	ErrAlreadyAttached = errors.New("editsession: surface already attached")
	ErrClosed          = errors.New("editsession: session closed")
)

type Options struct {
	// SessionID is generated when empty.
	SessionID   string
	DocumentID  string
	WorkspaceID string
	PageID      string

	Trigger    trigger.Options
	Suggestion SuggestionOptions
	AutoTag    AutoTagOptions

	SaveDebounce time.Duration
	SaveTimeout  time.Duration
	TypingQuiet  time.Duration
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions(documentID, workspaceID string) Options {
	return Options{
		DocumentID:  documentID,
		WorkspaceID: workspaceID,
		PageID:      documentID,
		Trigger:     trigger.DefaultOptions(),
		Suggestion: SuggestionOptions{
			MinContextChars: 3,
			ContextWindow:   250,
			MaxCandidates:   8,
			LinkPrefix:      "/pages/",
			Placement:       DefaultPlacementOptions(),
		},
		AutoTag: AutoTagOptions{
			Countdown: 15 * time.Second,
			Poll:      500 * time.Millisecond,
			PollCap:   10 * time.Second,
			MinChars:  50,
			Timeout:   30 * time.Second,
		},
		SaveDebounce: time.Second,
		SaveTimeout:  30 * time.Second,
		TypingQuiet:  time.Second,
	}
}

// OptionsFromConfig builds session options from the editor and gateway config.
func OptionsFromConfig(cfg *config.Config, documentID string) Options {
	e := cfg.Editor
	opts := DefaultOptions(documentID, cfg.Gateway.WorkspaceID)
	opts.Trigger = trigger.Options{
		Marker:      e.TriggerMarker,
		BlockRadius: 2,
		WindowChars: e.ContextWindowChars,
		HeadChars:   e.HeadChars,
		MaxChars:    e.MaxContextChars,
	}
	opts.Suggestion.MinContextChars = e.MinContextChars
	opts.Suggestion.ContextWindow = e.ContextWindowChars
	opts.Suggestion.MaxCandidates = e.MaxCandidates
	opts.Suggestion.Placement.Width = e.PopupWidth
	opts.Suggestion.Placement.Height = e.PopupHeight
	opts.Suggestion.Placement.Margin = e.PopupMargin
	opts.AutoTag.Countdown = e.AutoTagCountdown
	opts.AutoTag.Poll = e.AutoTagPoll
	opts.AutoTag.PollCap = e.AutoTagPollCap
	opts.AutoTag.MinChars = e.MinTagChars
	opts.AutoTag.Timeout = cfg.Gateway.Timeout
	opts.SaveDebounce = e.SaveDebounce
	opts.SaveTimeout = cfg.Gateway.Timeout
	opts.TypingQuiet = e.TypingQuiet
	return opts
}

// Deps are the collaborators a session runs against.
type Deps struct {
	Loop        *schedule.Loop
	Clock       schedule.Clock
	Persistence gateway.PersistenceGateway
	Suggestions gateway.SuggestionGateway
	Tags        gateway.TagGateway
	Pages       PageSource
	Signals     events.Signals
	Logger      logger.ILogger
}

type Session struct {
	id     string
	opts   Options
	deps   Deps
	store  *Store
	ctx    context.Context
	cancel context.CancelFunc

	detector *trigger.Detector
	surface  editor.Surface
	sync     *ContentSync
	typing   *Typing
	autoTag  *AutoTag
	engine   *Engine

	unregister  []func()
	markerCount int
	detached    bool
	closed      bool
}

func New(opts Options, deps Deps) (*Session, error) {
	if opts.DocumentID == "" {
		return nil, fmt.Errorf("editsession: document id is required")
	}
	if deps.Loop == nil || deps.Persistence == nil || deps.Suggestions == nil || deps.Tags == nil {
		return nil, fmt.Errorf("editsession: loop and gateways are required")
	}
	if deps.Clock == nil {
		deps.Clock = schedule.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Signals == nil {
		deps.Signals = events.NopSignals{}
	}
	opts.Suggestion.WorkspaceID = opts.WorkspaceID
	opts.Suggestion.PageID = opts.PageID
	opts.AutoTag.WorkspaceID = opts.WorkspaceID

	detector := trigger.NewDetector(opts.Trigger)
	opts.Suggestion.Marker = detector.Marker()
	opts.AutoTag.Markdown = lexical.MarkdownOptions{
		PageLinkPrefix: opts.Suggestion.LinkPrefix,
		Marker:         detector.Marker(),
	}

	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       opts.SessionID,
		opts:     opts,
		deps:     deps,
		store:    NewStore(opts.DocumentID),
		ctx:      ctx,
		cancel:   cancel,
		detector: detector,
	}
	s.sync = newContentSync(ctx, deps.Loop, deps.Clock, s.store, deps.Persistence, deps.Signals, deps.Logger,
		opts.DocumentID, opts.SaveDebounce, opts.SaveTimeout)
	s.typing = newTyping(deps.Loop, deps.Clock, s.store, opts.TypingQuiet)
	return s, nil
}

func (s *Session) ID() string         { return s.id }
func (s *Session) DocumentID() string { return s.opts.DocumentID }
func (s *Session) Store() *Store      { return s.store }

// Context returns parent carrying the session store.
func (s *Session) Context(parent context.Context) context.Context {
	return NewContext(parent, s.store)
}

// Attach binds the session to an editor surface. Call it before the loop
// starts running, or from a loop task.
func (s *Session) Attach(surface editor.Surface) error {
	if s.closed {
		return ErrClosed
	}
	if s.surface != nil {
		return ErrAlreadyAttached
	}

	doc, err := surface.Snapshot()
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	if err := s.sync.Baseline(doc); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	cursor, _ := surface.Cursor()
	s.markerCount = s.detector.Detect(doc, cursor).Count

	d := s.deps
	s.surface = surface
	s.autoTag = newAutoTag(s.ctx, d.Loop, d.Clock, s.typing, surface, d.Tags, s.store, d.Signals, d.Logger, s.opts.AutoTag)
	s.engine = newEngine(s.ctx, d.Loop, surface, d.Suggestions, d.Pages, s.store, d.Signals, d.Logger, s.opts.Suggestion)

	s.unregister = []func(){
		surface.OnChange(func() { s.post(s.handleChange) }),
		surface.OnBlur(func() { s.post(s.autoTag.OnBlur) }),
		surface.OnFocus(func() { s.post(s.autoTag.OnFocus) }),
		surface.OnKeyDown(func(k editor.Key) { s.post(func() { s.handleKey(k) }) }),
		surface.OnClickOutside(func() { s.post(func() { s.engine.Dismiss(ReasonClickOutside) }) }),
		surface.OnResize(func(v editor.Viewport) { s.post(func() { s.engine.Resize(v) }) }),
	}

	d.Logger.Info("Session", "Session attached", map[string]interface{}{
		"session_id":  s.id,
		"document_id": s.opts.DocumentID,
		"markers":     s.markerCount,
	})
	return nil
}

// post wraps an inbound callback into a loop task that no-ops once the
// session is closed or its buffer is gone.
func (s *Session) post(fn func()) {
	err := s.deps.Loop.Post(func() {
		if s.closed || s.detached {
			return
		}
		fn()
	})
	if err != nil {
		s.deps.Logger.Debug("Session", "Dropped editor event", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Session) handleChange() {
	doc, err := s.surface.Snapshot()
	if err != nil {
		s.bufferFailed(err)
		return
	}
	cursor, err := s.surface.Cursor()
	if err != nil {
		s.bufferFailed(err)
		return
	}

	s.sync.NotifyChanged(doc)
	s.autoTag.OnEdit()
	s.detect(doc, cursor)
}

// detect fires only for a newly typed marker and never while the popup is
// shown. A trigger still loading behind a hidden popup is superseded.
func (s *Session) detect(doc lexical.LexicalRoot, cursor editor.Cursor) {
	result := s.detector.Detect(doc, cursor)
	previous := s.markerCount
	s.markerCount = result.Count

	if !result.Found || result.Count <= previous || s.engine.State().Visible {
		return
	}
	s.deps.Logger.Debug("TriggerDetector", "Marker detected", map[string]interface{}{
		"offset":   result.Context.MarkerOffset,
		"strategy": string(result.Context.Strategy),
	})
	s.engine.Trigger(result.Context)
}

func (s *Session) handleKey(key editor.Key) {
	s.autoTag.OnKeystroke()
	if s.engine.HandleKey(key) {
		return
	}
	switch key {
	case editor.KeyUp, editor.KeyDown, editor.KeyEnter, editor.KeyEscape:
	default:
		s.typing.Touch()
	}
}

// WantsKey tells the editor wrapper whether key belongs to the popup and
// must not reach the buffer. Safe from any goroutine.
func (s *Session) WantsKey(key editor.Key) bool {
	if !s.store.Snapshot().Suggestion.Visible {
		return false
	}
	switch key {
	case editor.KeyUp, editor.KeyDown, editor.KeyEnter, editor.KeyEscape:
		return true
	}
	return false
}

func (s *Session) bufferFailed(err error) {
	if !errors.Is(err, editor.ErrDetached) {
		s.deps.Logger.Error("Session", "Buffer read failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.deps.Logger.Warn("Session", "Editor detached, coordinators stopped", map[string]interface{}{
		"session_id": s.id,
	})
	s.detached = true
	s.engine.reset()
	s.autoTag.stop()
	s.typing.stop()
}

// Close flushes pending content, waits for the save, then tears the session
// down. The loop must be driven by Run.
func (s *Session) Close(ctx context.Context) error {
	saved := make(chan struct{})
	err := s.deps.Loop.Call(ctx, func() {
		if s.closed {
			close(saved)
			return
		}
		s.sync.FlushNow()
		s.sync.whenIdle(func() { close(saved) })
	})
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	select {
	case <-saved:
	case <-ctx.Done():
		s.deps.Logger.Warn("Session", "Closing with a save still in flight", map[string]interface{}{
			"session_id": s.id,
		})
	}

	if err := s.deps.Loop.Call(ctx, s.shutdown); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (s *Session) shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	for _, fn := range s.unregister {
		fn()
	}
	s.unregister = nil

	if s.engine != nil {
		s.engine.abortFetch()
		s.engine.seq++
	}
	if s.autoTag != nil {
		s.autoTag.stop()
	}
	s.typing.stop()
	s.sync.stop()
	s.cancel()

	st := s.store.Snapshot()
	s.deps.Logger.Info("Session", "Session closed", map[string]interface{}{
		"session_id": s.id,
		"dirty":      st.Save.Dirty,
		"saves":      st.Save.SaveCount,
	})
}

// Components, exposed for the replay tool and tests.
func (s *Session) Sync() *ContentSync { return s.sync }
func (s *Session) Engine() *Engine    { return s.engine }
func (s *Session) AutoTag() *AutoTag  { return s.autoTag }
func (s *Session) Typing() *Typing    { return s.typing }
