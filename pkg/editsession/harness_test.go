package editsession

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/schedule"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// --- Fakes ---

type fakePersistence struct {
	mu       sync.Mutex
	saves    [][]byte
	errs     []error
	release  chan struct{} // when set, every Save blocks until closed
	active   int
	maxAlive int
}

func (f *fakePersistence) Save(ctx context.Context, _ string, content []byte) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxAlive {
		f.maxAlive = f.active
	}
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	f.saves = append(f.saves, append([]byte(nil), content...))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakePersistence) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakePersistence) last() lexical.LexicalRoot {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := lexical.Decode(string(f.saves[len(f.saves)-1]))
	if err != nil {
		panic(err)
	}
	return doc
}

type fakeSuggestions struct {
	mu       sync.Mutex
	requests []gateway.LinkSuggestionRequest
	respond  func(ctx context.Context, call int, req gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error)
}

func (f *fakeSuggestions) GenerateLinkSuggestions(ctx context.Context, req gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return nil, nil
	}
	return respond(ctx, call, req)
}

func (f *fakeSuggestions) calls() []gateway.LinkSuggestionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.LinkSuggestionRequest(nil), f.requests...)
}

type tagCall struct {
	title, content, workspaceID string
}

type fakeTags struct {
	mu     sync.Mutex
	called []tagCall
	result []gateway.TagSuggestion
	err    error
}

func (f *fakeTags) GenerateTags(_ context.Context, title, content, workspaceID string) ([]gateway.TagSuggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, tagCall{title, content, workspaceID})
	return f.result, f.err
}

func (f *fakeTags) calls() []tagCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tagCall(nil), f.called...)
}

type fakePages []gateway.Page

func (p fakePages) Pages(string) []gateway.Page { return p }

type accepted struct {
	pageID, title, source string
}

type recordingSignals struct {
	mu       sync.Mutex
	accepts  []accepted
	cleanups []string
	tags     [][]string
	saved    int
	failed   int
}

func (r *recordingSignals) SuggestionAccepted(_ context.Context, pageID, pageTitle, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepts = append(r.accepts, accepted{pageID, pageTitle, source})
}

func (r *recordingSignals) LinkCleanup(_ context.Context, _, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, reason)
}

func (r *recordingSignals) TagsGenerated(_ context.Context, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags)
}

func (r *recordingSignals) DocumentSaved(context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved++
}

func (r *recordingSignals) DocumentSaveFailed(context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

// --- Harness ---

type harness struct {
	t           *testing.T
	loop        *schedule.Loop
	clock       *schedule.ManualClock
	surface     *editor.MemorySurface
	persistence *fakePersistence
	suggestions *fakeSuggestions
	tags        *fakeTags
	signals     *recordingSignals
	session     *Session
}

var defaultPages = fakePages{
	{ID: "doc-1", Title: "This page"},
	{ID: "p-visa", Title: "Visa checklist"},
	{ID: "p-hotels", Title: "Hotels"},
	{ID: "p-packing", Title: "Packing list"},
}

func newHarness(t *testing.T, doc lexical.LexicalRoot, configure ...func(*Options, *Deps)) *harness {
	t.Helper()
	h := &harness{
		t:           t,
		loop:        schedule.NewLoop(),
		clock:       schedule.NewManualClock(epoch),
		surface:     editor.NewMemorySurface("Trip planning", doc, editor.Viewport{Width: 1280, Height: 800}),
		persistence: &fakePersistence{},
		suggestions: &fakeSuggestions{},
		tags:        &fakeTags{},
		signals:     &recordingSignals{},
	}

	opts := DefaultOptions("doc-1", "ws-1")
	deps := Deps{
		Loop:        h.loop,
		Clock:       h.clock,
		Persistence: h.persistence,
		Suggestions: h.suggestions,
		Tags:        h.tags,
		Pages:       defaultPages,
		Signals:     h.signals,
		Logger:      logger.NewNopLogger(),
	}
	for _, fn := range configure {
		fn(&opts, &deps)
	}

	s, err := New(opts, deps)
	require.NoError(t, err)
	require.NoError(t, s.Attach(h.surface))
	h.session = s
	t.Cleanup(h.loop.Close)
	return h
}

func (h *harness) settle() {
	h.loop.Settle()
}

// advance moves time in 100ms steps so timers armed by earlier callbacks get
// their turn, the way a real clock would interleave them.
func (h *harness) advance(d time.Duration) {
	const step = 100 * time.Millisecond
	for d > 0 {
		inc := step
		if d < step {
			inc = d
		}
		h.clock.Advance(inc)
		h.settle()
		d -= inc
	}
}

// edit replaces the document the way typing does: a keystroke, then a change.
func (h *harness) edit(text string) {
	h.surface.Press(editor.Key("x"))
	h.surface.SetDocument(lexical.Document(lexical.Paragraph(text)))
	h.settle()
}

// setText changes the document without a keystroke (paste, programmatic edit).
func (h *harness) setText(text string) {
	h.surface.SetDocument(lexical.Document(lexical.Paragraph(text)))
	h.settle()
}

func (h *harness) press(key editor.Key) {
	h.surface.Press(key)
	h.settle()
}

func (h *harness) state() State {
	return h.session.Store().Snapshot()
}
