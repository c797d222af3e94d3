package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/controller"
	"ai-notetaking-editor/internal/dto"
	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/internal/pkg/serverutils"
	"ai-notetaking-editor/internal/service"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/gateway/httpclient"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func setupServer(t *testing.T) (*Server, string) {
	t.Helper()

	workspace := service.NewWorkspaceService()
	workspace.SeedPages(context.Background(), "ws-1", []gateway.Page{
		{ID: "p-visa", Title: "Visa checklist", Summary: "Embassy appointment"},
		{ID: "p-hotels", Title: "Hotels", Summary: "Stays in Kyoto"},
	})

	cfg := &config.Config{MockAPI: config.MockAPIConfig{Port: "3000", JWTSecret: testSecret}}
	srv := New(cfg, controller.NewGatewayController(workspace))

	token, err := serverutils.SignToken(testSecret, "user-1")
	require.NoError(t, err)
	return srv, token
}

func doRequest(t *testing.T, srv *Server, method, path, token, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Auth(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name  string
		token string
		msg   string
	}{
		{"missing token", "", "Missing token"},
		{"wrong secret", mustSign(t, "other-secret"), "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, srv, http.MethodGet, "/api/workspaces/ws-1/pages", tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var res serverutils.BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
			assert.False(t, res.Success)
			assert.Equal(t, tt.msg, res.Message)
		})
	}
}

func mustSign(t *testing.T, secret string) string {
	t.Helper()
	token, err := serverutils.SignToken(secret, "user-1")
	require.NoError(t, err)
	return token
}

func TestServer_SaveAndShowDocument(t *testing.T) {
	srv, token := setupServer(t)

	resp := doRequest(t, srv, http.MethodPut, "/api/documents/doc-1/content", token, `{"content":{"root":{"children":[]}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved serverutils.BaseResponse[dto.SaveContentResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.True(t, saved.Success)
	assert.Equal(t, 1, saved.Data.Revision)

	resp = doRequest(t, srv, http.MethodGet, "/api/documents/doc-1", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var shown serverutils.BaseResponse[dto.ShowDocumentResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shown))
	assert.JSONEq(t, `{"root":{"children":[]}}`, string(shown.Data.Content))

	resp = doRequest(t, srv, http.MethodGet, "/api/documents/missing", token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Validation(t *testing.T) {
	srv, token := setupServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/ai/link-suggestions", token, `{"workspace_id":"ws-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var res serverutils.BaseResponse[map[string]string]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "Validation failed", res.Message)
	assert.Equal(t, "is required", res.Data["Text"])

	resp = doRequest(t, srv, http.MethodPost, "/api/workspaces/ws-1/pages", token, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_CreatePage(t *testing.T) {
	srv, token := setupServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/workspaces/ws-1/pages", token, `{"title":"Flights","icon":"✈"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/workspaces/ws-1/pages", token, "")
	var res serverutils.BaseResponse[dto.ListPagesResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Data.Pages, 3)
	assert.Equal(t, "Flights", res.Data.Pages[2].Title)
}

// The HTTP gateway client and the mock API must agree on paths and envelopes.
func TestServer_HTTPGatewayRoundTrip(t *testing.T) {
	srv, token := setupServer(t)
	ts := httptest.NewServer(adaptor.FiberApp(srv.GetApp()))
	defer ts.Close()

	ctx := context.Background()
	client := httpclient.NewClient(ts.URL, token, 5*time.Second, logger.NewNopLogger())

	require.NoError(t, client.Save(ctx, "doc-1", []byte(`{"root":{}}`)))

	suggestions, err := client.GenerateLinkSuggestions(ctx, gateway.LinkSuggestionRequest{
		Text:        "Book the embassy appointment for the visa",
		WorkspaceID: "ws-1",
		PageID:      "doc-1",
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "p-visa", suggestions[0].PageID)

	tags, err := client.GenerateTags(ctx, "Trip", "Kyoto temples and Kyoto gardens", "ws-1")
	require.NoError(t, err)
	require.NotEmpty(t, tags)
	assert.Equal(t, "kyoto", tags[0].Name)

	pages, err := client.ListPages(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	_, err = client.ListPages(ctx, "ws-unknown")
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	anonymous := httpclient.NewClient(ts.URL, "", 5*time.Second, logger.NewNopLogger())
	err = anonymous.Save(ctx, "doc-1", []byte(`{}`))
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}
