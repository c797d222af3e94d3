package editor

import (
	"sort"
	"sync"

	"ai-notetaking-editor/pkg/lexical"
)

// MemorySurface is an in-process Surface backed by a Lexical tree. The demo
// replay and the coordinator tests drive it in place of a real editor.
type MemorySurface struct {
	mu       sync.Mutex
	doc      lexical.LexicalRoot
	title    string
	cursor   Cursor
	viewport Viewport
	detached bool

	nextID   int
	change   map[int]func()
	blur     map[int]func()
	focus    map[int]func()
	keydown  map[int]func(Key)
	outside  map[int]func()
	resize   map[int]func(Viewport)
	mutation int
}

var _ Surface = (*MemorySurface)(nil)

func NewMemorySurface(title string, doc lexical.LexicalRoot, viewport Viewport) *MemorySurface {
	return &MemorySurface{
		doc:      doc,
		title:    title,
		viewport: viewport,
		change:   make(map[int]func()),
		blur:     make(map[int]func()),
		focus:    make(map[int]func()),
		keydown:  make(map[int]func(Key)),
		outside:  make(map[int]func()),
		resize:   make(map[int]func(Viewport)),
	}
}

// --- Buffer ---

func (s *MemorySurface) Snapshot() (lexical.LexicalRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return lexical.LexicalRoot{}, ErrDetached
	}
	return lexical.Clone(s.doc), nil
}

func (s *MemorySurface) Cursor() (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return Cursor{}, ErrDetached
	}
	return s.cursor, nil
}

func (s *MemorySurface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *MemorySurface) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *MemorySurface) ReplaceMarker(marker string, nearOffset int, link lexical.Node) error {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return ErrDetached
	}
	doc, ok := lexical.ReplaceMarker(s.doc, marker, nearOffset, link)
	if !ok {
		s.mu.Unlock()
		return ErrMarkerNotFound
	}
	s.doc = doc
	s.mutation++
	s.mu.Unlock()

	s.emitChange()
	return nil
}

func (s *MemorySurface) RemoveMarkers(marker string) error {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return ErrDetached
	}
	doc, n := lexical.RemoveMarkers(s.doc, marker)
	if n == 0 {
		s.mu.Unlock()
		return nil
	}
	s.doc = doc
	s.mutation++
	s.mu.Unlock()

	s.emitChange()
	return nil
}

// Mutations counts writes made through the Buffer interface (not user edits).
func (s *MemorySurface) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutation
}

// --- Registration ---

func register[F any](s *MemorySurface, m map[int]F, fn F) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	m[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(m, id)
		s.mu.Unlock()
	}
}

func (s *MemorySurface) OnChange(fn func()) func()         { return register(s, s.change, fn) }
func (s *MemorySurface) OnBlur(fn func()) func()           { return register(s, s.blur, fn) }
func (s *MemorySurface) OnFocus(fn func()) func()          { return register(s, s.focus, fn) }
func (s *MemorySurface) OnKeyDown(fn func(Key)) func()     { return register(s, s.keydown, fn) }
func (s *MemorySurface) OnClickOutside(fn func()) func()   { return register(s, s.outside, fn) }
func (s *MemorySurface) OnResize(fn func(Viewport)) func() { return register(s, s.resize, fn) }

// handlers copies a registry in registration order so callbacks run unlocked.
func handlers[F any](s *MemorySurface, m map[int]F) []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (s *MemorySurface) emitChange() {
	for _, fn := range handlers(s, s.change) {
		fn()
	}
}

// --- User input ---

// SetDocument replaces the buffer as if the user had edited it, moving the
// cursor to the end of the text.
func (s *MemorySurface) SetDocument(doc lexical.LexicalRoot) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.doc = doc
	s.cursor.Offset = len(lexical.PlainText(doc))
	s.mu.Unlock()

	s.emitChange()
}

func (s *MemorySurface) SetCursor(c Cursor) {
	s.mu.Lock()
	s.cursor = c
	s.mu.Unlock()
}

// Press delivers a keydown. Printable keys are keystrokes only; content changes
// arrive separately through SetDocument.
func (s *MemorySurface) Press(key Key) {
	for _, fn := range handlers(s, s.keydown) {
		fn(key)
	}
}

func (s *MemorySurface) Blur() {
	for _, fn := range handlers(s, s.blur) {
		fn()
	}
}

func (s *MemorySurface) Focus() {
	for _, fn := range handlers(s, s.focus) {
		fn()
	}
}

func (s *MemorySurface) ClickOutside() {
	for _, fn := range handlers(s, s.outside) {
		fn()
	}
}

func (s *MemorySurface) Resize(v Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()
	for _, fn := range handlers(s, s.resize) {
		fn(v)
	}
}

// Detach simulates the editor being torn down; every later buffer call fails with ErrDetached.
func (s *MemorySurface) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}
