package vectorindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T, dim int) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLiteIndex(":memory:", dim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestSQLiteIndexUpsertAndQuery(t *testing.T) {
	idx := setupIndex(t, 4)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, Entry{ID: "a", Vector: []float32{1, 0, 0, 0}, Title: "A", SourceURL: "https://x/a.pdf"}))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "b", Vector: []float32{0.8, 0.6, 0, 0}, Title: "B"}))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "c", Vector: []float32{0, 0, 1, 0}, Title: "C"}))

	matches, err := idx.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "A", matches[0].Title)
	assert.Equal(t, "https://x/a.pdf", matches[0].SourceURL)
	assert.Equal(t, "b", matches[1].ID)
	assert.InDelta(t, 0.8, matches[1].Score, 1e-6)
	assert.Equal(t, "c", matches[2].ID)
}

func TestSQLiteIndexTopK(t *testing.T) {
	idx := setupIndex(t, 8)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, idx.Upsert(ctx, Entry{ID: fmt.Sprintf("v%d", i), Vector: unitVector(8, i)}))
	}

	matches, err := idx.Query(ctx, unitVector(8, 3), 5)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
	assert.Equal(t, "v3", matches[0].ID)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}

	none, err := idx.Query(ctx, unitVector(8, 3), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteIndexUpsertOverwrites(t *testing.T) {
	idx := setupIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, Entry{ID: "a", Vector: []float32{1, 0, 0}, Title: "old"}))
	require.NoError(t, idx.Upsert(ctx, Entry{ID: "a", Vector: []float32{0, 1, 0}, Title: "new"}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches, err := idx.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Title)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestSQLiteIndexValidation(t *testing.T) {
	idx := setupIndex(t, 3)
	ctx := context.Background()

	assert.ErrorIs(t, idx.Upsert(ctx, Entry{Vector: []float32{1, 0, 0}}), ErrInvalidEntry)
	assert.ErrorIs(t, idx.Upsert(ctx, Entry{ID: "a"}), ErrInvalidEntry)
	assert.ErrorIs(t, idx.Upsert(ctx, Entry{ID: "a", Vector: []float32{1, 0}}), ErrDimensionMismatch)

	_, err := idx.Query(ctx, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSQLiteIndexEmpty(t *testing.T) {
	idx := setupIndex(t, 3)
	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestVectorSerialization(t *testing.T) {
	v := []float32{0.1, -2.5, 3.25, 0}
	assert.Equal(t, v, deserializeVector(serializeVector(v)))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestSortMatchesTieBreak(t *testing.T) {
	matches := []Match{{ID: "b", Score: 0.5}, {ID: "a", Score: 0.5}, {ID: "c", Score: 0.9}}
	sortMatches(matches)
	assert.Equal(t, []string{"c", "a", "b"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
}
