// Package editor defines the boundary between the edit-session coordinator and
// the editing surface that owns the document buffer.
package editor

import (
	"errors"

	"ai-notetaking-editor/pkg/lexical"
)

var (
	// ErrDetached is returned by every buffer operation once the editor has been torn down.
	ErrDetached = errors.New("editor: buffer detached")
	// ErrMarkerNotFound is returned by ReplaceMarker when no addressable marker is left.
	ErrMarkerNotFound = errors.New("editor: marker not found")
)

type Point struct {
	X int
	Y int
}

type Viewport struct {
	Width  int
	Height int
}

// Cursor is the caret position: an offset into the document's plain text and
// where the caret is drawn on screen.
type Cursor struct {
	Offset int
	Screen Point
}

type Key string

const (
	KeyUp     Key = "ArrowUp"
	KeyDown   Key = "ArrowDown"
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// Buffer is the mutable document. Reads return snapshots; the two write
// methods are the only mutations the coordinator ever requests. ReplaceMarker
// fails with ErrMarkerNotFound and leaves the document alone when there is
// nothing to replace.
type Buffer interface {
	Snapshot() (lexical.LexicalRoot, error)
	Cursor() (Cursor, error)
	Title() string
	ReplaceMarker(marker string, nearOffset int, link lexical.Node) error
	RemoveMarkers(marker string) error
}

// Surface is the editor wrapper. Callbacks are registered explicitly and each
// registration returns its own unregister func.
type Surface interface {
	Buffer
	Viewport() Viewport
	OnChange(fn func()) (unregister func())
	OnBlur(fn func()) (unregister func())
	OnFocus(fn func()) (unregister func())
	OnKeyDown(fn func(Key)) (unregister func())
	OnClickOutside(fn func()) (unregister func())
	OnResize(fn func(Viewport)) (unregister func())
}
