package editsession

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/schedule"
	"ai-notetaking-editor/pkg/trigger"
)

// GenericContext is sent instead of context text too short to mean anything.
const GenericContext = "General notes in this workspace. Suggest the most related pages."

// Dismiss reasons carried on the link-cleanup signal.
const (
	ReasonEscape       = "escape"
	ReasonClickOutside = "click_outside"
	ReasonClose        = "close"
	ReasonMarkerGone   = "marker_gone"
)

// Accept sources.
const (
	SourceAI   = "ai"
	SourcePage = "page"
)

// PageSource is the synchronous candidate page list of a workspace.
type PageSource interface {
	Pages(workspaceID string) []gateway.Page
}

type SuggestionOptions struct {
	Marker          string
	WorkspaceID     string
	PageID          string // current page, never offered as a candidate
	MinContextChars int
	ContextWindow   int
	MaxCandidates   int
	LinkPrefix      string
	Placement       PlacementOptions
}

// Engine is the suggestion popup state machine:
// idle -> loading -> visible -> (accepted | rejected | dismissed) -> idle.
type Engine struct {
	ctx     context.Context
	loop    *schedule.Loop
	surface editor.Surface
	gateway gateway.SuggestionGateway
	pages   PageSource
	store   *Store
	signals events.Signals
	logger  logger.ILogger
	opts    SuggestionOptions

	state       SuggestionState
	seq         uint64
	cancelFetch context.CancelFunc
}

func newEngine(ctx context.Context, loop *schedule.Loop, surface editor.Surface, gw gateway.SuggestionGateway, pages PageSource,
	store *Store, signals events.Signals, log logger.ILogger, opts SuggestionOptions) *Engine {
	return &Engine{
		ctx:     ctx,
		loop:    loop,
		surface: surface,
		gateway: gw,
		pages:   pages,
		store:   store,
		signals: signals,
		logger:  log,
		opts:    opts,
		state:   emptySuggestion(),
	}
}

// Active reports whether a trigger is being served (loading or visible).
func (e *Engine) Active() bool {
	return e.state.Loading || e.state.Visible
}

func (e *Engine) State() SuggestionState {
	return e.state
}

// Trigger opens the popup for tc. Candidate pages are filled immediately; AI
// suggestions arrive later and are dropped if another trigger superseded them.
func (e *Engine) Trigger(tc trigger.Context) {
	e.abortFetch()
	e.seq++
	seq := e.seq

	candidates := e.candidates()
	next := SuggestionState{
		Phase:          SuggestionLoading,
		Trigger:        &tc,
		CandidatePages: candidates,
		SelectedIndex:  -1,
		Loading:        true,
		Manual:         tc.Type == trigger.TypeManual,
	}
	if len(candidates) > 0 {
		next.Phase = SuggestionVisible
		next.Visible = true
		next.SelectedIndex = 0
		next.Placement = e.place(tc.Screen, e.surface.Viewport())
	}
	e.commit(next)

	text := tc.Text
	if utf8.RuneCountInString(strings.TrimSpace(text)) < e.opts.MinContextChars {
		text = GenericContext
	}
	req := gateway.LinkSuggestionRequest{
		Text:          text,
		WorkspaceID:   e.opts.WorkspaceID,
		PageID:        e.opts.PageID,
		ContextWindow: e.opts.ContextWindow,
	}

	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelFetch = cancel
	suggest := e.gateway
	err := e.loop.Go(func() func() {
		result, err := suggest.GenerateLinkSuggestions(ctx, req)
		return func() { e.resolve(seq, result, err) }
	})
	if err != nil {
		e.abortFetch()
		return
	}

	e.logger.Info("SuggestionEngine", "Suggestions requested", map[string]interface{}{
		"seq":        seq,
		"strategy":   string(tc.Strategy),
		"chars":      utf8.RuneCountInString(text),
		"candidates": len(candidates),
	})
}

func (e *Engine) resolve(seq uint64, result []gateway.Suggestion, err error) {
	if seq != e.seq || !e.Active() {
		e.logger.Debug("SuggestionEngine", "Discarding stale suggestions", map[string]interface{}{
			"seq":    seq,
			"latest": e.seq,
		})
		return
	}
	e.abortFetch()

	next := e.state
	next.Loading = false
	next.Phase = SuggestionVisible
	next.Visible = true
	if err != nil {
		next.Error = err.Error()
		e.logger.Warn("SuggestionEngine", "Suggestion fetch failed", map[string]interface{}{
			"seq":   seq,
			"error": err.Error(),
		})
	} else {
		next.AISuggestions = e.rank(result)
	}
	if !e.state.Visible {
		next.Placement = e.place(next.Trigger.Screen, e.surface.Viewport())
	}
	next.SelectedIndex = -1
	if next.TotalItems() > 0 {
		next.SelectedIndex = 0
	}
	e.commit(next)
}

// Move shifts the selection by delta, wrapping in both directions.
func (e *Engine) Move(delta int) {
	total := e.state.TotalItems()
	if !e.state.Visible || total == 0 {
		return
	}
	idx := ((e.state.SelectedIndex+delta)%total + total) % total
	e.state.SelectedIndex = idx
	e.store.SelectSuggestion(idx)
}

// Accept links the selected item in place of the trigger marker. It reports
// whether a link was written.
func (e *Engine) Accept() bool {
	if !e.state.Visible || e.state.SelectedIndex < 0 || e.state.Trigger == nil {
		return false
	}
	pageID, title, source := e.item(e.state.SelectedIndex)
	offset := e.state.Trigger.MarkerOffset
	e.reset()

	err := e.surface.ReplaceMarker(e.opts.Marker, offset, lexical.Link(e.opts.LinkPrefix+pageID, title))
	if errors.Is(err, editor.ErrMarkerNotFound) {
		e.logger.Warn("SuggestionEngine", "Trigger marker gone, nothing linked", map[string]interface{}{
			"page_id": pageID,
		})
		e.cleanup(ReasonMarkerGone)
		return false
	}
	if err != nil {
		level := e.logger.Error
		if errors.Is(err, editor.ErrDetached) {
			level = e.logger.Warn
		}
		level("SuggestionEngine", "Failed to insert link", map[string]interface{}{
			"page_id": pageID,
			"error":   err.Error(),
		})
		return false
	}

	e.logger.Info("SuggestionEngine", "Suggestion accepted", map[string]interface{}{
		"page_id": pageID,
		"source":  source,
	})
	e.signals.SuggestionAccepted(e.ctx, pageID, title, source)
	return true
}

// Reject is Escape: hide the popup and clean up the marker.
func (e *Engine) Reject() {
	e.Dismiss(ReasonEscape)
}

// Dismiss clears the popup and removes any residual trigger marker.
func (e *Engine) Dismiss(reason string) {
	if !e.Active() {
		return
	}
	e.reset()
	e.cleanup(reason)
}

// cleanup removes residual trigger markers and announces it.
func (e *Engine) cleanup(reason string) {
	if err := e.surface.RemoveMarkers(e.opts.Marker); err != nil && !errors.Is(err, editor.ErrDetached) {
		e.logger.Error("SuggestionEngine", "Failed to remove trigger marker", map[string]interface{}{
			"error": err.Error(),
		})
	}
	e.signals.LinkCleanup(e.ctx, e.opts.Marker, reason)
}

// Resize recomputes placement while the popup is shown.
func (e *Engine) Resize(vp editor.Viewport) {
	if !e.state.Visible || e.state.Trigger == nil {
		return
	}
	p := e.place(e.state.Trigger.Screen, vp)
	e.state.Placement = p
	e.store.PlaceSuggestion(p)
}

// HandleKey routes navigation keys while the popup is visible. It reports
// whether the key was consumed.
func (e *Engine) HandleKey(key editor.Key) bool {
	if !e.state.Visible {
		return false
	}
	switch key {
	case editor.KeyUp:
		e.Move(-1)
	case editor.KeyDown:
		e.Move(1)
	case editor.KeyEnter:
		e.Accept()
	case editor.KeyEscape:
		e.Reject()
	default:
		return false
	}
	return true
}

func (e *Engine) item(index int) (pageID, title, source string) {
	if index < len(e.state.AISuggestions) {
		s := e.state.AISuggestions[index]
		return s.PageID, s.Title, SourceAI
	}
	p := e.state.CandidatePages[index-len(e.state.AISuggestions)]
	return p.ID, p.Title, SourcePage
}

func (e *Engine) candidates() []gateway.Page {
	if e.pages == nil {
		return nil
	}
	all := e.pages.Pages(e.opts.WorkspaceID)
	out := make([]gateway.Page, 0, len(all))
	for _, p := range all {
		if p.ID == e.opts.PageID {
			continue
		}
		out = append(out, p)
		if e.opts.MaxCandidates > 0 && len(out) == e.opts.MaxCandidates {
			break
		}
	}
	return out
}

// rank drops the current page and orders by confidence, keeping backend order on ties.
func (e *Engine) rank(result []gateway.Suggestion) []gateway.Suggestion {
	out := make([]gateway.Suggestion, 0, len(result))
	for _, s := range result {
		if s.PageID == "" || s.PageID == e.opts.PageID {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func (e *Engine) place(caret editor.Point, vp editor.Viewport) Placement {
	return Compute(caret, vp, e.opts.Placement)
}

func (e *Engine) commit(next SuggestionState) {
	e.state = next
	e.store.SetSuggestion(next)
}

// reset returns to idle and makes any outstanding fetch stale.
func (e *Engine) reset() {
	e.abortFetch()
	e.seq++
	e.commit(emptySuggestion())
}

func (e *Engine) abortFetch() {
	if e.cancelFetch != nil {
		e.cancelFetch()
		e.cancelFetch = nil
	}
}
