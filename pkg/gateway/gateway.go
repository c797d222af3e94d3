// Package gateway defines the backend collaborators an edit session talks to.
// Implementations live in the subpackages; the session only sees these interfaces.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the document or workspace does not exist.
	ErrNotFound = errors.New("gateway: not found")
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("gateway: unauthorized")
)

// PersistenceGateway stores the serialized document.
type PersistenceGateway interface {
	Save(ctx context.Context, documentID string, content []byte) error
}

// SuggestionGateway proposes pages to link from a piece of context text.
type SuggestionGateway interface {
	GenerateLinkSuggestions(ctx context.Context, req LinkSuggestionRequest) ([]Suggestion, error)
}

// TagGateway proposes tags for a whole document.
type TagGateway interface {
	GenerateTags(ctx context.Context, title, content, workspaceID string) ([]TagSuggestion, error)
}

// PageLister fetches the pages of a workspace; used to refresh the candidate page cache.
type PageLister interface {
	ListPages(ctx context.Context, workspaceID string) ([]Page, error)
}

type LinkSuggestionRequest struct {
	Text          string `json:"text" validate:"required"`
	WorkspaceID   string `json:"workspace_id" validate:"required"`
	PageID        string `json:"page_id,omitempty"`
	ContextWindow int    `json:"context_window"`
}

type Suggestion struct {
	PageID     string  `json:"page_id"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

type TagSuggestion struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type Page struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Icon    string `json:"icon,omitempty"`
	Summary string `json:"summary,omitempty"`
}
