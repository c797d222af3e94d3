package dto

import (
	"encoding/json"
	"time"

	"ai-notetaking-editor/pkg/gateway"
)

type SaveContentRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

type SaveContentResponse struct {
	DocumentId string    `json:"document_id"`
	Revision   int       `json:"revision"`
	SavedAt    time.Time `json:"saved_at"`
}

type ShowDocumentResponse struct {
	Id       string          `json:"id"`
	Content  json.RawMessage `json:"content"`
	Revision int             `json:"revision"`
	SavedAt  time.Time       `json:"saved_at"`
}

type LinkSuggestionsResponse struct {
	Suggestions []gateway.Suggestion `json:"suggestions"`
}

type GenerateTagsRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content" validate:"required"`
	WorkspaceId string `json:"workspace_id"`
}

type GenerateTagsResponse struct {
	Tags []gateway.TagSuggestion `json:"tags"`
}

type ListPagesResponse struct {
	Pages []gateway.Page `json:"pages"`
}

type CreatePageRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Icon    string `json:"icon"`
	Summary string `json:"summary" validate:"max=1000"`
}

// AcceptedLink is one accepted suggestion recorded from the event stream.
type AcceptedLink struct {
	DocumentId string    `json:"document_id"`
	PageId     string    `json:"page_id"`
	PageTitle  string    `json:"page_title"`
	Source     string    `json:"source"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type ListAcceptedLinksResponse struct {
	Links []AcceptedLink `json:"links"`
}
