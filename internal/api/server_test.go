package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

type mockSearch struct {
	mu        sync.Mutex
	resp      *types.SearchResponse
	err       error
	callCount int
	lastQuery string
}

func (m *mockSearch) Search(ctx context.Context, req searcher.SearchRequest) (*types.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastQuery = req.Query
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func newTestServer(search SearchService, checks map[string]HealthCheck) *Server {
	return NewServer(search, checks, Config{Mode: gin.TestMode, CORSOrigins: []string{"*"}}, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestSearchOK(t *testing.T) {
	results := make([]types.ScoredDocument, 15)
	for i := range results {
		results[i] = types.ScoredDocument{Score: 0.9, ID: "id", Title: "t", URL: "https://x/a.pdf", Type: types.FileTypePDF}
	}
	search := &mockSearch{resp: types.Paginate(results, 10)}
	s := newTestServer(search, nil)

	w := do(t, s, http.MethodPost, "/search", `{"query":"photosynthesis"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Message string                 `json:"message"`
		Results []types.ScoredDocument `json:"results"`
		More    []types.ScoredDocument `json:"more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, types.MessageFound, body.Message)
	assert.Len(t, body.Results, 10)
	assert.Len(t, body.More, 5)
	assert.Equal(t, "photosynthesis", search.lastQuery)
}

func TestSearchEmptyResultShape(t *testing.T) {
	s := newTestServer(&mockSearch{resp: types.Paginate(nil, 10)}, nil)

	w := do(t, s, http.MethodPost, "/search", `{"query":"nothing"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"No relevant documents found.","results":[],"more":[]}`, w.Body.String())
}

func TestSearchBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"missing query", `{}`},
		{"blank query", `{"query":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &mockSearch{err: searcher.ErrEmptyQuery}
			s := newTestServer(search, nil)

			w := do(t, s, http.MethodPost, "/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"No input provided"}`, w.Body.String())
		})
	}
}

func TestSearchErrorMapping(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		status int
		prefix string
	}{
		{"embedding", fmt.Errorf("%w: %w", types.ErrEmbedding, boom), http.StatusInternalServerError, "Embedding failed: "},
		{"index", fmt.Errorf("%w: %w", types.ErrIndex, boom), http.StatusInternalServerError, "Vector index query failed: "},
		{"store", fmt.Errorf("%w: %w", types.ErrStore, boom), http.StatusInternalServerError, "Database error: "},
		{"too long", searcher.ErrQueryTooLong, http.StatusBadRequest, "validation failure"},
		{"unknown", boom, http.StatusInternalServerError, "Internal error: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockSearch{err: tt.err}, nil)

			w := do(t, s, http.MethodPost, "/search", `{"query":"q"}`)
			assert.Equal(t, tt.status, w.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, strings.HasPrefix(body.Error, tt.prefix), body.Error)
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&mockSearch{}, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	})
	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"store": "ok"}, body["checks"])
}

func TestHealthUnhealthy(t *testing.T) {
	s := newTestServer(&mockSearch{}, map[string]HealthCheck{
		"index": func(context.Context) error { return errors.New("unreachable") },
	})
	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	s := NewServer(&mockSearch{resp: types.Paginate(nil, 10)}, nil,
		Config{Mode: gin.TestMode, CORSOrigins: []string{"https://app.example.com"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := NewServer(&mockSearch{}, nil, Config{Mode: gin.TestMode, Port: 0}, nil)
	s.cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
