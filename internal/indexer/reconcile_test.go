package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/recovery"
	"github.com/dshills/neurosearch/internal/storage"
	"github.com/dshills/neurosearch/internal/vectorindex"
	"github.com/dshills/neurosearch/pkg/types"
)

func cachedEntry(t *testing.T, id, url, content string, truncate int) recovery.Entry {
	t.Helper()
	input := EmbeddingInput("title "+id, content, url, truncate)
	emb, err := embedder.NewLocalProvider(testDimension, nil).GenerateEmbedding(
		context.Background(), embedder.EmbeddingRequest{Text: input})
	require.NoError(t, err)
	return recovery.Entry{
		ID:            id,
		Vector:        emb.Vector,
		Title:         "title " + id,
		SourceURL:     url,
		FileType:      types.FileTypeTXT,
		Content:       content,
		InputHash:     embedder.ComputeHash(input),
		TruncateChars: truncate,
		CachedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestReconcileRestoresMissingRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// a crash after the cache write but with both stores lost
	require.NoError(t, h.cache.Put(cachedEntry(t, "id-1", "https://x/1.txt", "one", 3000)))
	require.NoError(t, h.cache.Put(cachedEntry(t, "id-2", "https://x/2.txt", "two", 3000)))

	// id-2 still has its metadata record
	require.NoError(t, h.store.Insert(ctx, &types.Document{
		ID: "id-2", Title: "title id-2", SourceURL: "https://x/2.txt", FileType: types.FileTypeTXT, Content: "two",
	}))

	report, err := h.idx.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 1, report.Restored)
	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 0, report.Failed)

	doc, err := h.store.GetDocument(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "one", doc.Content)
	assert.Equal(t, "https://x/1.txt", doc.SourceURL)

	vectors, err := h.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, vectors)

	assert.Same(t, report, h.idx.Status().LastReconcile)
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.cache.Put(cachedEntry(t, "id-1", "https://x/1.txt", "one", 3000)))

	_, err := h.idx.Reconcile(ctx)
	require.NoError(t, err)
	report, err := h.idx.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Restored)
	assert.Equal(t, 1, report.Upserted)

	n, err := h.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReconcileAfterCycleRebuildsIndex(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.source.add("a.txt", "", "alpha")
	h.source.add("b.txt", "", "beta")
	_, err := h.idx.RunCycle(ctx)
	require.NoError(t, err)

	// replay into an empty index, as after losing the vector store
	fresh, err := vectorindex.NewSQLiteIndex(filepath.Join(t.TempDir(), "fresh.db"), testDimension)
	require.NoError(t, err)
	defer fresh.Close()

	deps := h.deps
	deps.Index = fresh
	idx := h.build(t, deps)

	report, err := idx.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Stale)
	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 0, report.Restored)

	vectors, err := fresh.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, vectors)
}

func TestReconcileSkipsStaleEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tampered := cachedEntry(t, "tampered", "https://x/t.txt", "original", 3000)
	tampered.Content = "edited after embedding"
	require.NoError(t, h.cache.Put(tampered))

	wrongDim := cachedEntry(t, "dim", "https://x/d.txt", "text", 3000)
	wrongDim.Vector = []float32{1, 0, 0}
	require.NoError(t, h.cache.Put(wrongDim))

	require.NoError(t, h.cache.Put(cachedEntry(t, "ok", "https://x/ok.txt", "fine", 3000)))

	report, err := h.idx.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 2, report.Stale)
	assert.ElementsMatch(t, []string{"tampered", "dim"}, report.StaleIDs)
	assert.Equal(t, 1, report.Upserted)

	_, err = h.store.GetDocument(ctx, "tampered")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReconcileCountsTruncationDrift(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cache.Put(cachedEntry(t, "old", "https://x/old.txt", "some longer content", 5)))

	report, err := h.idx.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Stale, "an entry is checked against its own truncation limit")
	assert.Equal(t, 1, report.Drifted)
	assert.Equal(t, 1, report.Upserted)
}

func TestReconcileConflictSkipsVector(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Insert(ctx, &types.Document{
		ID: "owner", Title: "owner", SourceURL: "https://x/shared.txt", FileType: types.FileTypeTXT,
	}))
	require.NoError(t, h.cache.Put(cachedEntry(t, "orphan", "https://x/shared.txt", "text", 3000)))

	report, err := h.idx.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 0, report.Upserted)

	vectors, err := h.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, vectors)
}

func TestReconcileUpsertFailureIsCounted(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cache.Put(cachedEntry(t, "id-1", "https://x/1.txt", "one", 3000)))
	h.faulty.failURL["https://x/1.txt"] = true

	report, err := h.idx.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Restored)
	require.Len(t, report.ErrorMessages, 1)
	assert.Contains(t, report.ErrorMessages[0], "upsert")
}

func TestReconcileEmptyCache(t *testing.T) {
	h := newHarness(t)
	report, err := h.idx.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Entries)
	assert.Equal(t, 0, report.Upserted)
}
