package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/gateway"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ai-notetaking-editor/gateway/httpclient"

// Client talks to the notes backend over its JSON API. One Client serves all
// four gateway roles.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client

	logger logger.ILogger
	tracer trace.Tracer
}

var (
	_ gateway.PersistenceGateway = &Client{}
	_ gateway.SuggestionGateway  = &Client{}
	_ gateway.TagGateway         = &Client{}
	_ gateway.PageLister         = &Client{}
)

func NewClient(baseURL, token string, timeout time.Duration, log logger.ILogger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: timeout,
		},
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
}

// --- Wire structs (internal to this package) ---

// envelope mirrors the backend's response wrapper.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type saveContentRequest struct {
	Content json.RawMessage `json:"content"`
}

type tagRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	WorkspaceID string `json:"workspace_id"`
}

type linkSuggestionsData struct {
	Suggestions []gateway.Suggestion `json:"suggestions"`
}

type tagsData struct {
	Tags []gateway.TagSuggestion `json:"tags"`
}

type pagesData struct {
	Pages []gateway.Page `json:"pages"`
}

// --- Interface implementation ---

func (c *Client) Save(ctx context.Context, documentID string, content []byte) error {
	path := "/api/documents/" + url.PathEscape(documentID) + "/content"
	return c.do(ctx, "gateway.Save", http.MethodPut, path, saveContentRequest{Content: content}, nil,
		attribute.String("document.id", documentID),
		attribute.Int("document.bytes", len(content)),
	)
}

func (c *Client) GenerateLinkSuggestions(ctx context.Context, req gateway.LinkSuggestionRequest) ([]gateway.Suggestion, error) {
	var out linkSuggestionsData
	err := c.do(ctx, "gateway.GenerateLinkSuggestions", http.MethodPost, "/api/ai/link-suggestions", req, &out,
		attribute.String("workspace.id", req.WorkspaceID),
		attribute.Int("context.chars", len(req.Text)),
	)
	if err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

func (c *Client) GenerateTags(ctx context.Context, title, content, workspaceID string) ([]gateway.TagSuggestion, error) {
	var out tagsData
	payload := tagRequest{Title: title, Content: content, WorkspaceID: workspaceID}
	err := c.do(ctx, "gateway.GenerateTags", http.MethodPost, "/api/ai/tags", payload, &out,
		attribute.String("workspace.id", workspaceID),
	)
	if err != nil {
		return nil, err
	}
	return out.Tags, nil
}

func (c *Client) ListPages(ctx context.Context, workspaceID string) ([]gateway.Page, error) {
	var out pagesData
	path := "/api/workspaces/" + url.PathEscape(workspaceID) + "/pages"
	err := c.do(ctx, "gateway.ListPages", http.MethodGet, path, nil, &out,
		attribute.String("workspace.id", workspaceID),
	)
	if err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// do sends one JSON request inside a span and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, spanName, method, path string, body, out interface{}, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(append(attrs, attribute.String("request.id", requestID))...)

	err := c.roundTrip(ctx, requestID, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			c.logger.Warn("HTTPGateway", "Request failed", map[string]interface{}{
				"method":     method,
				"path":       path,
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, requestID, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payloadBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, gateway.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, gateway.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: status %d, body: %s", method, path, resp.StatusCode, errorMessage(bodyBytes))
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}

	env := envelope[json.RawMessage]{}
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}
	return nil
}

// errorMessage prefers the envelope message over the raw body.
func errorMessage(body []byte) string {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return string(body)
}
