package editsession

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoSuggestions = []gateway.Suggestion{
	{PageID: "p-flights", Title: "Flights", Confidence: 0.72},
	{PageID: "p-budget", Title: "Budget", Confidence: 0.91},
}

func respondWith(s []gateway.Suggestion, err error) func(context.Context, int, gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
	return func(context.Context, int, gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		return s, err
	}
}

func TestSuggestion_ManualTriggerShowsRankedItems(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("need a")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)

	h.edit("need a @link here")

	calls := h.suggestions.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Text, "need a @link here")
	assert.Equal(t, "ws-1", calls[0].WorkspaceID)
	assert.Equal(t, "doc-1", calls[0].PageID)

	st := h.state().Suggestion
	require.True(t, st.Visible)
	assert.False(t, st.Loading)
	assert.Equal(t, SuggestionVisible, st.Phase)
	assert.Equal(t, trigger.TypeManual, st.Trigger.Type)
	assert.Equal(t, 7, st.Trigger.MarkerOffset)
	assert.Equal(t, 5, st.TotalItems())
	assert.Equal(t, "Budget", st.AISuggestions[0].Title, "ordered by confidence")
	assert.Equal(t, 0, st.SelectedIndex)

	for i := 0; i < 5; i++ {
		h.press(editor.KeyDown)
	}
	assert.Equal(t, 0, h.state().Suggestion.SelectedIndex)
}

func TestSuggestion_NavigationWraps(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)
	h.edit("go @link")

	h.press(editor.KeyUp)
	assert.Equal(t, 4, h.state().Suggestion.SelectedIndex, "up from the first item selects the last")

	h.press(editor.KeyDown)
	assert.Equal(t, 0, h.state().Suggestion.SelectedIndex, "down from the last item selects the first")
}

func TestSuggestion_CandidatesShowBeforeSuggestionsArrive(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	release := make(chan struct{})
	h.suggestions.respond = func(ctx context.Context, _ int, _ gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		<-release
		return twoSuggestions, nil
	}

	h.surface.SetDocument(lexical.Document(lexical.Paragraph("see @link")))
	h.loop.RunPending()

	st := h.state().Suggestion
	assert.True(t, st.Visible)
	assert.True(t, st.Loading)
	assert.Len(t, st.CandidatePages, 3, "current page is excluded")
	assert.Empty(t, st.AISuggestions)

	close(release)
	h.settle()
	assert.Equal(t, 5, h.state().Suggestion.TotalItems())
}

func TestSuggestion_AcceptReplacesMarker(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)
	h.edit("need a @link here")

	h.press(editor.KeyDown)
	h.press(editor.KeyEnter)

	assert.False(t, h.state().Suggestion.Visible)
	assert.Equal(t, -1, h.state().Suggestion.SelectedIndex)
	require.Len(t, h.signals.accepts, 1)
	assert.Equal(t, accepted{pageID: "p-flights", title: "Flights", source: SourceAI}, h.signals.accepts[0])

	doc, err := h.surface.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "need a Flights here", lexical.PlainText(doc))
	link := doc.Root.Children[0].Children[1]
	assert.Equal(t, lexical.TypeLink, link.Type)
	assert.Equal(t, "/pages/p-flights", link.URL)
	assert.Equal(t, 1, h.surface.Mutations())

	// The write-back is an ordinary change: it gets saved and does not re-trigger.
	h.advance(time.Second)
	assert.Equal(t, "need a Flights here", lexical.PlainText(h.persistence.last()))
	assert.Len(t, h.suggestions.calls(), 1)

	h.press(editor.KeyEnter)
	assert.Len(t, h.signals.accepts, 1, "enter without a popup accepts nothing")
}

func TestSuggestion_AcceptCandidatePage(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.edit("see @link")

	h.press(editor.KeyDown)
	h.press(editor.KeyEnter)

	require.Len(t, h.signals.accepts, 1)
	assert.Equal(t, accepted{pageID: "p-hotels", title: "Hotels", source: SourcePage}, h.signals.accepts[0])
}

func TestSuggestion_AcceptReplacesSplitMarker(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)
	bold := lexical.Text("nk")
	bold.Format = lexical.FormatBold

	h.surface.Press(editor.Key("k"))
	h.surface.SetDocument(lexical.Document(lexical.Node{Type: lexical.TypeParagraph, Children: []lexical.Node{
		lexical.Text("need a @li"), bold, lexical.Text(" here"),
	}}))
	h.settle()
	require.True(t, h.state().Suggestion.Visible)

	h.press(editor.KeyEnter)

	require.Len(t, h.signals.accepts, 1)
	assert.Equal(t, "p-budget", h.signals.accepts[0].pageID)
	doc, err := h.surface.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "need a Budget here", lexical.PlainText(doc))
	assert.Equal(t, lexical.TypeLink, doc.Root.Children[0].Children[1].Type)
	assert.Equal(t, 1, h.surface.Mutations())
}

func TestSuggestion_AcceptAfterMarkerDeletedLinksNothing(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)
	h.edit("need a @link here")
	require.True(t, h.state().Suggestion.Visible)

	h.edit("need a  here")
	require.True(t, h.state().Suggestion.Visible, "deleting the marker does not close the popup by itself")

	h.press(editor.KeyEnter)

	assert.Empty(t, h.signals.accepts)
	assert.Equal(t, []string{ReasonMarkerGone}, h.signals.cleanups)
	assert.False(t, h.state().Suggestion.Visible)
	assert.Equal(t, 0, h.surface.Mutations())
	doc, err := h.surface.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "need a  here", lexical.PlainText(doc))
}

func TestSuggestion_DismissRemovesMarker(t *testing.T) {
	tests := []struct {
		name   string
		action func(h *harness)
		reason string
	}{
		{name: "escape", action: func(h *harness) { h.press(editor.KeyEscape) }, reason: ReasonEscape},
		{name: "click outside", action: func(h *harness) { h.surface.ClickOutside(); h.settle() }, reason: ReasonClickOutside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, lexical.Document(lexical.Paragraph("")))
			h.suggestions.respond = respondWith(twoSuggestions, nil)
			h.edit("need a @link here")

			tt.action(h)

			st := h.state().Suggestion
			assert.False(t, st.Visible)
			assert.Equal(t, SuggestionIdle, st.Phase)
			assert.Equal(t, []string{tt.reason}, h.signals.cleanups)
			assert.Empty(t, h.signals.accepts)

			doc, err := h.surface.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, "need a here", lexical.PlainText(doc))
		})
	}
}

func TestSuggestion_ClickOutsideWhenIdleDoesNothing(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))

	h.surface.ClickOutside()
	h.settle()

	assert.Empty(t, h.signals.cleanups)
	assert.Equal(t, 0, h.surface.Mutations())
}

func TestSuggestion_FetchFailureKeepsCandidates(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(nil, errors.New("suggestion service unavailable"))

	h.edit("need a @link here")

	st := h.state().Suggestion
	assert.True(t, st.Visible)
	assert.False(t, st.Loading)
	assert.Equal(t, "suggestion service unavailable", st.Error)
	assert.Len(t, st.CandidatePages, 3)
	assert.Equal(t, 0, st.SelectedIndex)
}

func TestSuggestion_IgnoresMarkersWhileVisible(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.edit("first @link")
	require.True(t, h.state().Suggestion.Visible)

	h.edit("first @link and @link")

	assert.Len(t, h.suggestions.calls(), 1)
}

func TestSuggestion_ExistingMarkerDoesNotTrigger(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("old @link left over")))

	h.edit("old @link left over, more text")

	assert.Empty(t, h.suggestions.calls())
	assert.False(t, h.state().Suggestion.Visible)
}

func TestSuggestion_ShortContextUsesGenericText(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")), func(o *Options, _ *Deps) {
		o.Suggestion.MinContextChars = 10
	})

	h.edit("@link")

	calls := h.suggestions.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, GenericContext, calls[0].Text)
}

func TestSuggestion_NoCandidatesStaysHiddenUntilLoaded(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")), func(_ *Options, d *Deps) {
		d.Pages = fakePages{}
	})
	release := make(chan struct{})
	h.suggestions.respond = func(context.Context, int, gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		<-release
		return twoSuggestions, nil
	}

	h.surface.SetDocument(lexical.Document(lexical.Paragraph("see @link")))
	h.loop.RunPending()

	st := h.state().Suggestion
	assert.False(t, st.Visible)
	assert.True(t, st.Loading)
	assert.Equal(t, SuggestionLoading, st.Phase)
	assert.Equal(t, -1, st.SelectedIndex)

	close(release)
	h.settle()

	st = h.state().Suggestion
	assert.True(t, st.Visible)
	assert.Equal(t, 2, st.TotalItems())
}

func TestSuggestion_SecondMarkerSupersedesHiddenLoad(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")), func(_ *Options, d *Deps) {
		d.Pages = fakePages{}
	})
	releaseFirst := make(chan struct{})
	h.suggestions.respond = func(_ context.Context, call int, _ gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		if call == 1 {
			<-releaseFirst
			return []gateway.Suggestion{{PageID: "p-stale", Title: "Stale", Confidence: 0.99}}, nil
		}
		return []gateway.Suggestion{{PageID: "p-fresh", Title: "Fresh", Confidence: 0.5}}, nil
	}

	h.surface.SetDocument(lexical.Document(lexical.Paragraph("a @link")))
	h.loop.RunPending()
	st := h.state().Suggestion
	require.True(t, st.Loading)
	require.False(t, st.Visible)

	h.surface.SetDocument(lexical.Document(lexical.Paragraph("a @link and b @link")))
	require.Eventually(t, func() bool {
		h.loop.RunPending()
		return h.state().Suggestion.Visible
	}, 2*time.Second, 5*time.Millisecond)

	close(releaseFirst)
	h.settle()

	assert.Len(t, h.suggestions.calls(), 2)
	st = h.state().Suggestion
	require.Len(t, st.AISuggestions, 1)
	assert.Equal(t, "p-fresh", st.AISuggestions[0].PageID)
	assert.Equal(t, len("a @link and b "), st.Trigger.MarkerOffset)
}

func TestSuggestion_StaleResponseDiscarded(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	releaseFirst := make(chan struct{})
	firstCancelled := make(chan bool, 1)
	stale := []gateway.Suggestion{{PageID: "p-stale", Title: "Stale", Confidence: 0.99}}
	fresh := []gateway.Suggestion{{PageID: "p-fresh", Title: "Fresh", Confidence: 0.5}}

	h.suggestions.respond = func(ctx context.Context, _ int, req gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		if req.Text == "first trigger context" {
			<-releaseFirst
			firstCancelled <- ctx.Err() != nil
			return stale, nil
		}
		return fresh, nil
	}

	engine := h.session.Engine()
	engine.Trigger(trigger.Context{Type: trigger.TypeManual, Text: "first trigger context"})
	engine.Trigger(trigger.Context{Type: trigger.TypeManual, Text: "second trigger context"})

	require.Eventually(t, func() bool {
		h.loop.RunPending()
		return !h.state().Suggestion.Loading
	}, 2*time.Second, 5*time.Millisecond)

	close(releaseFirst)
	h.settle()

	assert.True(t, <-firstCancelled, "superseded request context is cancelled")
	st := h.state().Suggestion
	require.Len(t, st.AISuggestions, 1)
	assert.Equal(t, "p-fresh", st.AISuggestions[0].PageID)
	assert.True(t, st.Visible)
}

func TestSuggestion_StaleResponseAfterDismiss(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	releaseFirst := make(chan struct{})
	h.suggestions.respond = func(_ context.Context, _ int, req gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
		if !strings.Contains(req.Text, "two") {
			<-releaseFirst
			return []gateway.Suggestion{{PageID: "p-stale", Title: "Stale"}}, nil
		}
		return []gateway.Suggestion{{PageID: "p-fresh", Title: "Fresh"}}, nil
	}

	h.surface.SetDocument(lexical.Document(lexical.Paragraph("one @link")))
	h.loop.RunPending()
	h.surface.Press(editor.KeyEscape)
	h.loop.RunPending()
	h.surface.SetDocument(lexical.Document(lexical.Paragraph("one two @link")))
	h.loop.RunPending()

	require.Eventually(t, func() bool {
		h.loop.RunPending()
		return len(h.state().Suggestion.AISuggestions) == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(releaseFirst)
	h.settle()

	st := h.state().Suggestion
	require.Len(t, st.AISuggestions, 1)
	assert.Equal(t, "Fresh", st.AISuggestions[0].Title)
}

func TestSuggestion_PlacementFlipsAndFollowsResize(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)

	h.surface.SetCursor(editor.Cursor{Screen: editor.Point{X: 1200, Y: 700}})
	h.setText("bottom @link")

	p := h.state().Suggestion.Placement
	assert.True(t, p.Above)
	assert.Equal(t, 380, p.Y)
	assert.Equal(t, 1280-16-360, p.X)

	h.surface.Resize(editor.Viewport{Width: 1600, Height: 1400})
	h.settle()

	p = h.state().Suggestion.Placement
	assert.False(t, p.Above)
	assert.Equal(t, 724, p.Y)
	assert.Equal(t, 1200, p.X)
}

func TestSuggestion_DetachedBufferNoOps(t *testing.T) {
	h := newHarness(t, lexical.Document(lexical.Paragraph("")))
	h.suggestions.respond = respondWith(twoSuggestions, nil)
	h.edit("need a @link here")
	require.True(t, h.state().Suggestion.Visible)

	h.surface.Detach()
	assert.NotPanics(t, func() {
		h.session.Engine().Accept()
		h.settle()
	})

	assert.False(t, h.state().Suggestion.Visible)
	assert.Empty(t, h.signals.accepts)
	assert.True(t, strings.Contains(h.suggestions.calls()[0].Text, "@link"))
}
