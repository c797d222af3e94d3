package editsession

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/trigger"
)

type SuggestionPhase string

const (
	SuggestionIdle    SuggestionPhase = "idle"
	SuggestionLoading SuggestionPhase = "loading"
	SuggestionVisible SuggestionPhase = "visible"
)

type AutoTagPhase string

const (
	AutoTagDisarmed          AutoTagPhase = "disarmed"
	AutoTagWaitingTypingIdle AutoTagPhase = "waiting_typing_idle"
	AutoTagCountingDown      AutoTagPhase = "counting_down"
	AutoTagFired             AutoTagPhase = "fired"
	AutoTagCancelled         AutoTagPhase = "cancelled"
)

// SaveState is the persistence half of the edit session.
type SaveState struct {
	DocumentID  string
	Dirty       bool
	Saving      bool
	Error       string
	LastEditAt  time.Time
	LastSavedAt time.Time
	SaveCount   int
	Fingerprint uint64
}

// SuggestionState is the popup. SelectedIndex is -1 when there is nothing to select.
type SuggestionState struct {
	Phase          SuggestionPhase
	Trigger        *trigger.Context
	AISuggestions  []gateway.Suggestion
	CandidatePages []gateway.Page
	SelectedIndex  int
	Visible        bool
	Loading        bool
	Manual         bool
	Error          string
	Placement      Placement
}

func (s SuggestionState) TotalItems() int {
	return len(s.AISuggestions) + len(s.CandidatePages)
}

type AutoTagState struct {
	Phase          AutoTagPhase
	Deadline       time.Time
	EditedSinceArm bool
	Tags           []gateway.TagSuggestion
}

type TypingState struct {
	IsTyping      bool
	QuietDeadline time.Time
}

// State is an immutable copy of everything observable about a session.
type State struct {
	Save       SaveState
	Suggestion SuggestionState
	AutoTag    AutoTagState
	Typing     TypingState
}

func emptySuggestion() SuggestionState {
	return SuggestionState{Phase: SuggestionIdle, SelectedIndex: -1}
}

// Store is the observable, session-scoped state container. Every mutation
// goes through a typed method and notifies subscribers after the lock is
// released, on the goroutine that mutated (the session loop).
type Store struct {
	mu          sync.RWMutex
	state       State
	nextID      int
	subscribers map[int]func(State)
}

func NewStore(documentID string) *Store {
	return &Store{
		state: State{
			Save:       SaveState{DocumentID: documentID},
			Suggestion: emptySuggestion(),
			AutoTag:    AutoTagState{Phase: AutoTagDisarmed},
		},
		subscribers: make(map[int]func(State)),
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Subscribe registers fn for every later change and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) update(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := cloneState(s.state)
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// --- Save ---

func (s *Store) MarkEdited(dirty bool, at time.Time) {
	s.update(func(st *State) {
		st.Save.Dirty = dirty
		st.Save.LastEditAt = at
	})
}

func (s *Store) SaveStarted() {
	s.update(func(st *State) { st.Save.Saving = true })
}

// SaveSucceeded clears the error. dirty stays true when the buffer moved on
// while the save was in flight.
func (s *Store) SaveSucceeded(fingerprint uint64, at time.Time, dirty bool) {
	s.update(func(st *State) {
		st.Save.Saving = false
		st.Save.Error = ""
		st.Save.Dirty = dirty
		st.Save.LastSavedAt = at
		st.Save.SaveCount++
		st.Save.Fingerprint = fingerprint
	})
}

func (s *Store) SaveFailed(err error) {
	s.update(func(st *State) {
		st.Save.Saving = false
		st.Save.Dirty = true
		st.Save.Error = err.Error()
	})
}

// SaveSkipped is recorded when a flush finds nothing new to persist.
func (s *Store) SaveSkipped() {
	s.update(func(st *State) {
		st.Save.Dirty = false
		st.Save.Error = ""
	})
}

// --- Suggestion ---

func (s *Store) SetSuggestion(next SuggestionState) {
	s.update(func(st *State) { st.Suggestion = next })
}

func (s *Store) SelectSuggestion(index int) {
	s.update(func(st *State) { st.Suggestion.SelectedIndex = index })
}

func (s *Store) PlaceSuggestion(p Placement) {
	s.update(func(st *State) { st.Suggestion.Placement = p })
}

func (s *Store) ClearSuggestion() {
	s.update(func(st *State) { st.Suggestion = emptySuggestion() })
}

// --- Auto-tag and typing ---

func (s *Store) SetAutoTag(phase AutoTagPhase, deadline time.Time, editedSinceArm bool) {
	s.update(func(st *State) {
		st.AutoTag.Phase = phase
		st.AutoTag.Deadline = deadline
		st.AutoTag.EditedSinceArm = editedSinceArm
	})
}

func (s *Store) SetTags(tags []gateway.TagSuggestion) {
	s.update(func(st *State) { st.AutoTag.Tags = tags })
}

func (s *Store) SetTyping(isTyping bool, quietDeadline time.Time) {
	s.update(func(st *State) {
		st.Typing = TypingState{IsTyping: isTyping, QuietDeadline: quietDeadline}
	})
}

func cloneState(st State) State {
	out := st
	if st.Suggestion.Trigger != nil {
		tc := *st.Suggestion.Trigger
		out.Suggestion.Trigger = &tc
	}
	out.Suggestion.AISuggestions = append([]gateway.Suggestion(nil), st.Suggestion.AISuggestions...)
	out.Suggestion.CandidatePages = append([]gateway.Page(nil), st.Suggestion.CandidatePages...)
	out.AutoTag.Tags = append([]gateway.TagSuggestion(nil), st.AutoTag.Tags...)
	return out
}

type storeKey struct{}

// NewContext returns a copy of ctx carrying the session store.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext returns the session store carried by ctx, if any.
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok
}
