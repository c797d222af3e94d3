package editor

import (
	"testing"

	"ai-notetaking-editor/pkg/lexical"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSurface(text string) *MemorySurface {
	return NewMemorySurface("Notes", lexical.Document(lexical.Paragraph(text)), Viewport{Width: 800, Height: 600})
}

func TestMemorySurface_CallbacksInRegistrationOrder(t *testing.T) {
	s := newSurface("")
	var order []string

	unregisterA := s.OnChange(func() { order = append(order, "a") })
	s.OnChange(func() { order = append(order, "b") })

	s.SetDocument(lexical.Document(lexical.Paragraph("hi")))
	assert.Equal(t, []string{"a", "b"}, order)

	unregisterA()
	order = nil
	s.SetDocument(lexical.Document(lexical.Paragraph("hi there")))
	assert.Equal(t, []string{"b"}, order)
}

func TestMemorySurface_SetDocumentMovesCursorToEnd(t *testing.T) {
	s := newSurface("")
	s.SetDocument(lexical.Document(lexical.Paragraph("hello")))

	c, err := s.Cursor()
	require.NoError(t, err)
	assert.Equal(t, 5, c.Offset)
	assert.Zero(t, s.Mutations(), "user edits are not buffer mutations")
}

func TestMemorySurface_SnapshotIsACopy(t *testing.T) {
	s := newSurface("keep me")
	doc, err := s.Snapshot()
	require.NoError(t, err)

	doc.Root.Children = nil

	again, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "keep me", lexical.PlainText(again))
}

func TestMemorySurface_Mutations(t *testing.T) {
	s := newSurface("see @link and @link")
	changes := 0
	s.OnChange(func() { changes++ })

	require.NoError(t, s.ReplaceMarker("@link", 100, lexical.Link("/pages/p-1", "Page")))
	assert.Equal(t, 1, s.Mutations())
	assert.Equal(t, 1, changes)

	require.NoError(t, s.RemoveMarkers("@link"))
	assert.Equal(t, 2, s.Mutations())

	// Nothing left to remove: no mutation, no change event.
	require.NoError(t, s.RemoveMarkers("@link"))
	assert.Equal(t, 2, s.Mutations())
	assert.Equal(t, 2, changes)

	err := s.ReplaceMarker("@link", 0, lexical.Link("/pages/p-2", "Other"))
	assert.ErrorIs(t, err, ErrMarkerNotFound)
	assert.Equal(t, 2, s.Mutations())
	assert.Equal(t, 2, changes)
}

func TestMemorySurface_Detached(t *testing.T) {
	s := newSurface("text")
	called := false
	s.OnChange(func() { called = true })
	s.Detach()

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrDetached)
	_, err = s.Cursor()
	assert.ErrorIs(t, err, ErrDetached)
	assert.ErrorIs(t, s.ReplaceMarker("@link", 0, lexical.Text("x")), ErrDetached)
	assert.ErrorIs(t, s.RemoveMarkers("@link"), ErrDetached)

	s.SetDocument(lexical.Document(lexical.Paragraph("ignored")))
	assert.False(t, called)
}

func TestMemorySurface_Resize(t *testing.T) {
	s := newSurface("")
	var got Viewport
	s.OnResize(func(v Viewport) { got = v })

	s.Resize(Viewport{Width: 400, Height: 300})
	assert.Equal(t, Viewport{Width: 400, Height: 300}, got)
	assert.Equal(t, got, s.Viewport())
}
