package memory

import (
	"context"
	"fmt"
	"time"

	"ai-notetaking-editor/pkg/gateway"

	"github.com/patrickmn/go-cache"
)

// PageRepository is the in-memory candidate page source. Reads never touch
// the network; Refresh fills the cache from a PageLister.
type PageRepository struct {
	cache  *cache.Cache
	lister gateway.PageLister
}

func NewPageRepository(lister gateway.PageLister, ttl time.Duration) *PageRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PageRepository{
		cache:  cache.New(ttl, 2*ttl),
		lister: lister,
	}
}

// Pages returns the cached pages of a workspace in backend order, nil on a miss.
func (r *PageRepository) Pages(workspaceID string) []gateway.Page {
	if x, found := r.cache.Get(workspaceID); found {
		pages := x.([]gateway.Page)
		out := make([]gateway.Page, len(pages))
		copy(out, pages)
		return out
	}
	return nil
}

// Put replaces the cached page list of a workspace.
func (r *PageRepository) Put(workspaceID string, pages []gateway.Page) {
	stored := make([]gateway.Page, len(pages))
	copy(stored, pages)
	r.cache.Set(workspaceID, stored, cache.DefaultExpiration)
}

// Refresh reloads a workspace from the backend. On failure the previous
// entry is kept.
func (r *PageRepository) Refresh(ctx context.Context, workspaceID string) ([]gateway.Page, error) {
	if r.lister == nil {
		return r.Pages(workspaceID), nil
	}
	pages, err := r.lister.ListPages(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("refresh pages for workspace %s: %w", workspaceID, err)
	}
	r.Put(workspaceID, pages)
	return r.Pages(workspaceID), nil
}

func (r *PageRepository) Invalidate(workspaceID string) {
	r.cache.Delete(workspaceID)
}
