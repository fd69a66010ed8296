package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/neurosearch/internal/config"
	"github.com/dshills/neurosearch/internal/searcher"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	cfg := config.Default()
	cfg.ObjectStore.Backend = config.ObjectStoreFilesystem
	cfg.ObjectStore.Dir = docs
	cfg.Metadata.SQLitePath = filepath.Join(dir, "meta.db")
	cfg.Vector.SQLitePath = filepath.Join(dir, "vectors.db")
	cfg.Recovery.CachePath = filepath.Join(dir, "cache", "vector_cache.db")
	cfg.Ingest.TempDir = dir
	cfg.Embedding.Dimension = 64
	cfg.HTTP.GinMode = "test"
	return cfg
}

func writeDoc(t *testing.T, cfg *config.Config, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ObjectStore.Dir, name), []byte(text), 0o644))
}

func TestIngestThenSearch(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	writeDoc(t, cfg, "volcanoes.txt", "magma lava eruption crater volcano")
	writeDoc(t, cfg, "baking.txt", "flour butter oven bread dough")
	writeDoc(t, cfg, "notes.md", "unsupported format")

	a, err := New(ctx, cfg, nil, Options{Ingest: true, Version: "test"})
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	stats, err := a.Indexer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Ingested)
	assert.Equal(t, 1, stats.Unsupported)

	resp, err := a.Searcher.Search(ctx, searcher.SearchRequest{Query: "lava eruption"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Primary)
	assert.Equal(t, "volcanoes", resp.Primary[0].Title)

	n, err := a.Cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReconcileRebuildsFreshIndex(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	writeDoc(t, cfg, "rivers.txt", "delta estuary current river bank")

	first, err := New(ctx, cfg, nil, Options{Ingest: true})
	require.NoError(t, err)
	_, err = first.Indexer.RunCycle(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// lose the vector index, keep metadata and the recovery cache
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(cfg.Vector.SQLitePath + suffix)
	}

	second, err := New(ctx, cfg, nil, Options{Ingest: true})
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	report, err := second.Indexer.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)

	resp, err := second.Searcher.Search(ctx, searcher.SearchRequest{Query: "river delta"})
	require.NoError(t, err)
	require.Len(t, resp.Primary, 1)
	assert.Equal(t, "rivers", resp.Primary[0].Title)
}

func TestQueryOnlyNeedsNoObjectStore(t *testing.T) {
	cfg := localConfig(t)
	cfg.ObjectStore.Backend = config.ObjectStoreCloudinary

	a, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.Nil(t, a.Indexer)
	assert.NotNil(t, a.Searcher)

	_, err = New(context.Background(), cfg, nil, Options{Ingest: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object store")
}

func TestAPIServerOverLocalBackends(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	writeDoc(t, cfg, "tides.txt", "moon gravity tide ocean")

	a, err := New(ctx, cfg, nil, Options{Ingest: true})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	_, err = a.Indexer.RunCycle(ctx)
	require.NoError(t, err)

	h := a.APIServer().Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vector_index")

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"ocean tide"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	primary, ok := body["results"].([]any)
	require.True(t, ok)
	assert.Len(t, primary, 1)
}

func TestNewSource(t *testing.T) {
	_, err := NewSource(config.ObjectStoreConfig{Backend: "s3"})
	assert.Error(t, err)

	_, err = NewSource(config.ObjectStoreConfig{Backend: config.ObjectStoreCloudinary})
	assert.Error(t, err)

	src, err := NewSource(config.ObjectStoreConfig{Backend: config.ObjectStoreFilesystem, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", src.Name())
}

func TestRunWorkerStopsOnCancel(t *testing.T) {
	cfg := localConfig(t)
	a, err := New(context.Background(), cfg, nil, Options{Ingest: true})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.RunWorker(ctx))
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), localConfig(t), nil, Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
