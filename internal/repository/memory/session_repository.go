package memory

import (
	"sort"

	"ai-notetaking-editor/pkg/editsession"

	"github.com/patrickmn/go-cache"
)

// SessionRepository tracks the open edit sessions of this process, keyed by
// document so a second open of the same document reuses the live session.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Sessions leave the registry when closed, never by age.
	c := cache.New(cache.NoExpiration, 0)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *editsession.Session) {
	r.cache.Set(session.DocumentID(), session, cache.NoExpiration)
}

func (r *SessionRepository) Get(documentID string) (*editsession.Session, bool) {
	if x, found := r.cache.Get(documentID); found {
		return x.(*editsession.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(documentID string) {
	r.cache.Delete(documentID)
}

// List returns the open sessions ordered by document id.
func (r *SessionRepository) List() []*editsession.Session {
	items := r.cache.Items()
	out := make([]*editsession.Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*editsession.Session))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DocumentID() < out[j].DocumentID()
	})
	return out
}
