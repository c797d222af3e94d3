package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"ai-notetaking-editor/internal/dto"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"

	"github.com/google/uuid"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

const (
	maxLinkSuggestions = 5
	maxTags            = 5
	minTokenLength     = 3
	minTagTokenLength  = 4
)

// IWorkspaceService is the in-memory backend behind the mock gateway API.
type IWorkspaceService interface {
	SaveContent(ctx context.Context, documentId string, req *dto.SaveContentRequest) (*dto.SaveContentResponse, error)
	ShowDocument(ctx context.Context, documentId string) (*dto.ShowDocumentResponse, error)
	SuggestLinks(ctx context.Context, req *gateway.LinkSuggestionRequest) (*dto.LinkSuggestionsResponse, error)
	GenerateTags(ctx context.Context, req *dto.GenerateTagsRequest) (*dto.GenerateTagsResponse, error)
	ListPages(ctx context.Context, workspaceId string) (*dto.ListPagesResponse, error)
	CreatePage(ctx context.Context, workspaceId string, req *dto.CreatePageRequest) (*gateway.Page, error)
	SeedPages(ctx context.Context, workspaceId string, pages []gateway.Page)
	RecordAcceptedLink(ctx context.Context, link dto.AcceptedLink)
	ListAcceptedLinks(ctx context.Context, documentId string) *dto.ListAcceptedLinksResponse
}

type document struct {
	content  json.RawMessage
	revision int
	savedAt  time.Time
}

type workspaceService struct {
	mu        sync.RWMutex
	documents map[string]*document
	pages     map[string][]gateway.Page
	accepted  map[string][]dto.AcceptedLink
	now       func() time.Time
}

func NewWorkspaceService() IWorkspaceService {
	return &workspaceService{
		documents: make(map[string]*document),
		pages:     make(map[string][]gateway.Page),
		accepted:  make(map[string][]dto.AcceptedLink),
		now:       time.Now,
	}
}

func (s *workspaceService) SaveContent(ctx context.Context, documentId string, req *dto.SaveContentRequest) (*dto.SaveContentResponse, error) {
	if !json.Valid(req.Content) {
		return nil, errors.New("content is not valid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentId]
	if !ok {
		doc = &document{}
		s.documents[documentId] = doc
	}
	doc.content = append(json.RawMessage(nil), req.Content...)
	doc.revision++
	doc.savedAt = s.now()

	return &dto.SaveContentResponse{
		DocumentId: documentId,
		Revision:   doc.revision,
		SavedAt:    doc.savedAt,
	}, nil
}

func (s *workspaceService) ShowDocument(ctx context.Context, documentId string) (*dto.ShowDocumentResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentId]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &dto.ShowDocumentResponse{
		Id:       documentId,
		Content:  doc.content,
		Revision: doc.revision,
		SavedAt:  doc.savedAt,
	}, nil
}

// SuggestLinks scores every page of the workspace by the share of its title
// and summary words that also appear in the request text.
func (s *workspaceService) SuggestLinks(ctx context.Context, req *gateway.LinkSuggestionRequest) (*dto.LinkSuggestionsResponse, error) {
	s.mu.RLock()
	pages, ok := s.pages[req.WorkspaceID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrWorkspaceNotFound
	}

	text := tokenSet(req.Text, minTokenLength)
	suggestions := make([]gateway.Suggestion, 0)
	for _, page := range pages {
		if page.ID == req.PageID {
			continue
		}
		words := tokenSet(page.Title+" "+page.Summary, minTokenLength)
		if len(words) == 0 {
			continue
		}

		var matched []string
		for w := range words {
			if _, hit := text[w]; hit {
				matched = append(matched, w)
			}
		}
		if len(matched) == 0 {
			continue
		}
		sort.Strings(matched)

		suggestions = append(suggestions, gateway.Suggestion{
			PageID:     page.ID,
			Title:      page.Title,
			Confidence: float64(len(matched)) / float64(len(words)),
			Reason:     "Mentions " + strings.Join(matched, ", "),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > maxLinkSuggestions {
		suggestions = suggestions[:maxLinkSuggestions]
	}
	return &dto.LinkSuggestionsResponse{Suggestions: suggestions}, nil
}

// GenerateTags picks the most frequent longer words of the title and content.
// Content may be plain text, Markdown or raw Lexical JSON.
func (s *workspaceService) GenerateTags(ctx context.Context, req *dto.GenerateTagsRequest) (*dto.GenerateTagsResponse, error) {
	content := lexical.ParseContent(req.Content)
	counts := make(map[string]int)
	for _, w := range tokens(req.Title+" "+content, minTagTokenLength) {
		counts[w]++
	}

	names := make([]string, 0, len(counts))
	for w := range counts {
		names = append(names, w)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > maxTags {
		names = names[:maxTags]
	}

	tags := make([]gateway.TagSuggestion, 0, len(names))
	for _, name := range names {
		tags = append(tags, gateway.TagSuggestion{
			Name:       name,
			Confidence: float64(counts[name]) / float64(counts[names[0]]),
		})
	}
	return &dto.GenerateTagsResponse{Tags: tags}, nil
}

func (s *workspaceService) ListPages(ctx context.Context, workspaceId string) (*dto.ListPagesResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages, ok := s.pages[workspaceId]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	return &dto.ListPagesResponse{Pages: append([]gateway.Page{}, pages...)}, nil
}

func (s *workspaceService) CreatePage(ctx context.Context, workspaceId string, req *dto.CreatePageRequest) (*gateway.Page, error) {
	page := gateway.Page{
		ID:      uuid.NewString(),
		Title:   req.Title,
		Icon:    req.Icon,
		Summary: req.Summary,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[workspaceId] = append(s.pages[workspaceId], page)
	return &page, nil
}

// SeedPages replaces the pages of a workspace, creating it if needed.
func (s *workspaceService) SeedPages(ctx context.Context, workspaceId string, pages []gateway.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[workspaceId] = append([]gateway.Page{}, pages...)
}

func (s *workspaceService) RecordAcceptedLink(ctx context.Context, link dto.AcceptedLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[link.DocumentId] = append(s.accepted[link.DocumentId], link)
}

func (s *workspaceService) ListAcceptedLinks(ctx context.Context, documentId string) *dto.ListAcceptedLinksResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &dto.ListAcceptedLinksResponse{
		Links: append([]dto.AcceptedLink{}, s.accepted[documentId]...),
	}
}

// --- Tokenizing ---

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "into": {}, "have": {}, "need": {}, "about": {}, "here": {},
	"link": {}, "are": {}, "was": {}, "you": {}, "our": {},
}

func tokens(text string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func tokenSet(text string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range tokens(text, minLen) {
		set[w] = struct{}{}
	}
	return set
}
