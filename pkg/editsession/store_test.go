package editsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-notetaking-editor/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	s := NewStore("doc-1")
	var seen []State
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st) })

	s.MarkEdited(true, epoch)
	s.SaveFailed(errors.New("boom"))
	unsubscribe()
	s.SaveSucceeded(42, epoch.Add(time.Second), false)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Save.Dirty)
	assert.Equal(t, "boom", seen[1].Save.Error)
	assert.Equal(t, uint64(42), s.Snapshot().Save.Fingerprint)
	assert.Empty(t, s.Snapshot().Save.Error)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore("doc-1")
	s.SetSuggestion(SuggestionState{
		Phase:          SuggestionVisible,
		Visible:        true,
		CandidatePages: []gateway.Page{{ID: "p1", Title: "One"}},
		SelectedIndex:  0,
	})

	snap := s.Snapshot()
	snap.Suggestion.CandidatePages[0].Title = "changed"

	assert.Equal(t, "One", s.Snapshot().Suggestion.CandidatePages[0].Title)
}

func TestStore_ClearSuggestion(t *testing.T) {
	s := NewStore("doc-1")
	s.SetSuggestion(SuggestionState{Phase: SuggestionVisible, Visible: true, SelectedIndex: 2})

	s.ClearSuggestion()

	st := s.Snapshot().Suggestion
	assert.Equal(t, SuggestionIdle, st.Phase)
	assert.False(t, st.Visible)
	assert.Equal(t, -1, st.SelectedIndex)
}

func TestStore_Context(t *testing.T) {
	s := NewStore("doc-1")

	got, ok := FromContext(NewContext(context.Background(), s))
	assert.True(t, ok)
	assert.Same(t, s, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
