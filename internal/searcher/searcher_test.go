package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/storage"
	"github.com/dshills/neurosearch/internal/vectorindex"
	"github.com/dshills/neurosearch/pkg/types"
)

type mockEmbedder struct {
	mu        sync.Mutex
	err       error
	callCount int
	texts     []string
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.texts = append(m.texts, req.Text)
	if m.err != nil {
		return nil, m.err
	}
	return &embedder.Embedding{Vector: []float32{1, 0}, Dimension: 2, Provider: "mock", Model: "mock"}, nil
}

func (m *mockEmbedder) Dimension() int   { return 2 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock" }
func (m *mockEmbedder) Close() error     { return nil }

type mockIndex struct {
	mu        sync.Mutex
	matches   []vectorindex.Match
	err       error
	callCount int
	lastTopK  int
}

func (m *mockIndex) Upsert(ctx context.Context, e vectorindex.Entry) error { return nil }
func (m *mockIndex) Close() error                                         { return nil }

func (m *mockIndex) Query(ctx context.Context, v []float32, topK int) ([]vectorindex.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastTopK = topK
	if m.err != nil {
		return nil, m.err
	}
	if len(m.matches) > topK {
		return m.matches[:topK], nil
	}
	return m.matches, nil
}

type mockStore struct {
	storage.Store
	mu       sync.Mutex
	docs     map[string]*types.Document
	err      error
	fetchIDs []string
}

func (m *mockStore) FetchByIDs(ctx context.Context, ids []string) ([]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchIDs = append([]string(nil), ids...)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*types.Document, 0, len(ids))
	// reverse order: the store makes no ordering promise
	for i := len(ids) - 1; i >= 0; i-- {
		if d, ok := m.docs[ids[i]]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func fixture(n int) (*mockIndex, *mockStore) {
	idx := &mockIndex{}
	store := &mockStore{docs: map[string]*types.Document{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%02d", i)
		idx.matches = append(idx.matches, vectorindex.Match{ID: id, Score: 1 - float64(i)/100})
		store.docs[id] = &types.Document{
			ID: id, Title: "Doc " + id, SourceURL: "https://x/" + id + ".pdf", FileType: types.FileTypePDF,
		}
	}
	return idx, store
}

func TestSearchPaginatesFifteenResults(t *testing.T) {
	idx, store := fixture(15)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "cells"})
	require.NoError(t, err)
	assert.Equal(t, types.MessageFound, resp.Message)
	assert.Len(t, resp.Primary, 10)
	assert.Len(t, resp.More, 5)
	assert.Equal(t, "doc-00", resp.Primary[0].ID)
	assert.Equal(t, "doc-10", resp.More[0].ID)
	assert.Equal(t, DefaultTopK, idx.lastTopK)
}

func TestSearchTopKCapsMore(t *testing.T) {
	idx, store := fixture(80)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "cells"})
	require.NoError(t, err)
	assert.Len(t, resp.Primary, 10)
	assert.Len(t, resp.More, 40)
}

func TestSearchJoinToleratesMissingRecords(t *testing.T) {
	idx, store := fixture(5)
	delete(store.docs, "doc-01")
	delete(store.docs, "doc-03")
	store.docs["doc-04"].FileType = "exe"

	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)
	resp, err := s.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, r := range resp.Primary {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"doc-00", "doc-02"}, ids, "index order kept, missing and invalid records dropped")
	assert.Empty(t, resp.More)
	assert.Len(t, store.fetchIDs, 5, "one batch fetch for all candidates")
}

func TestSearchResultFields(t *testing.T) {
	idx, store := fixture(1)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Primary, 1)
	assert.Equal(t, types.ScoredDocument{
		Score: 1, ID: "doc-00", Title: "Doc doc-00", URL: "https://x/doc-00.pdf", Type: types.FileTypePDF,
	}, resp.Primary[0])
}

func TestSearchNoResults(t *testing.T) {
	idx, store := fixture(0)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, types.MessageNotFound, resp.Message)
	assert.NotNil(t, resp.Primary)
	assert.NotNil(t, resp.More)
	assert.Nil(t, store.fetchIDs, "no fetch for an empty candidate list")
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			emb := &mockEmbedder{}
			idx, store := fixture(3)
			s := NewSearcher(emb, idx, store, nil, nil, nil)

			_, err := s.Search(context.Background(), SearchRequest{Query: q})
			require.ErrorIs(t, err, types.ErrValidation)
			assert.Equal(t, 0, emb.callCount)
			assert.Equal(t, 0, idx.callCount, "validation happens before the index is reached")
		})
	}
}

func TestSearchRejectsLongQuery(t *testing.T) {
	idx, store := fixture(1)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)
	_, err := s.Search(context.Background(), SearchRequest{Query: strings.Repeat("a", MaxQueryLength+1)})
	assert.ErrorIs(t, err, ErrQueryTooLong)
}

func TestSearchEmbedsQueryUnmodified(t *testing.T) {
	emb := &mockEmbedder{}
	idx, store := fixture(1)
	s := NewSearcher(emb, idx, store, nil, nil, nil)

	long := strings.Repeat("x", 1500) + "  "
	_, err := s.Search(context.Background(), SearchRequest{Query: long})
	require.NoError(t, err)
	assert.Equal(t, []string{long}, emb.texts)
}

func TestSearchErrorKinds(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(*mockEmbedder, *mockIndex, *mockStore)
		kind  error
	}{
		{"embedding", func(e *mockEmbedder, _ *mockIndex, _ *mockStore) { e.err = boom }, types.ErrEmbedding},
		{"index", func(_ *mockEmbedder, i *mockIndex, _ *mockStore) { i.err = boom }, types.ErrIndex},
		{"store", func(_ *mockEmbedder, _ *mockIndex, s *mockStore) { s.err = boom }, types.ErrStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &mockEmbedder{}
			idx, store := fixture(3)
			tt.setup(emb, idx, store)
			s := NewSearcher(emb, idx, store, nil, nil, nil)

			_, err := s.Search(context.Background(), SearchRequest{Query: "q"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestSearchRequestOverrides(t *testing.T) {
	idx, store := fixture(30)
	s := NewSearcher(&mockEmbedder{}, idx, store, &Config{TopK: 20, PageSize: 5}, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 20, idx.lastTopK)
	assert.Len(t, resp.Primary, 5)
	assert.Len(t, resp.More, 15)

	_, err = s.Search(context.Background(), SearchRequest{Query: "q", TopK: 10_000, PageSize: 190})
	require.NoError(t, err)
	assert.Equal(t, MaxTopK, idx.lastTopK)
}

func TestSearchBoundsMoreForLargeTopK(t *testing.T) {
	idx, store := fixture(250)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "q", TopK: MaxTopK, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 10+MaxMore, idx.lastTopK)
	assert.Len(t, resp.Primary, 10)
	assert.Len(t, resp.More, MaxMore)

	resp, err = s.Search(context.Background(), SearchRequest{Query: "q", TopK: 150, PageSize: 100})
	require.NoError(t, err)
	assert.Len(t, resp.Primary, 100)
	assert.Len(t, resp.More, MaxMore)
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, 50, ClampTopK(50, 10))
	assert.Equal(t, 20, ClampTopK(20, 10))
	assert.Equal(t, 45, ClampTopK(200, 5))
	assert.Equal(t, MaxTopK, ClampTopK(500, 190))
}

func TestSearchConcurrent(t *testing.T) {
	idx, store := fixture(12)
	s := NewSearcher(&mockEmbedder{}, idx, store, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Search(context.Background(), SearchRequest{Query: "q"})
			if assert.NoError(t, err) {
				assert.Equal(t, 12, resp.Total())
			}
		}()
	}
	wg.Wait()
}
