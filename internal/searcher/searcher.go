package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/storage"
	"github.com/dshills/neurosearch/internal/telemetry"
	"github.com/dshills/neurosearch/internal/vectorindex"
	"github.com/dshills/neurosearch/pkg/types"
)

// Defaults
const (
	DefaultTopK     = 50
	DefaultPageSize = 10
	MaxTopK         = 200
	MaxQueryLength  = 2000

	// MaxMore bounds the results returned after the primary page
	MaxMore = 40
)

var (
	// ErrEmptyQuery rejects a missing or blank query
	ErrEmptyQuery = fmt.Errorf("%w: query is required", types.ErrValidation)
	// ErrQueryTooLong rejects queries over MaxQueryLength characters
	ErrQueryTooLong = fmt.Errorf("%w: query exceeds %d characters", types.ErrValidation, MaxQueryLength)
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	TopK     int // candidates requested from the index (default 50)
	PageSize int // size of the primary page (default 10)
}

// Config contains searcher defaults
type Config struct {
	TopK     int
	PageSize int
}

// Searcher is the query service. It holds no per-request state and is
// safe for concurrent use.
type Searcher struct {
	embedder embedder.Embedder
	index    vectorindex.Index
	store    storage.Store
	cfg      Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewSearcher creates a new Searcher instance. A nil config uses the defaults.
func NewSearcher(emb embedder.Embedder, index vectorindex.Index, store storage.Store, cfg *Config, logger *slog.Logger, metrics *telemetry.Metrics) *Searcher {
	c := Config{TopK: DefaultTopK, PageSize: DefaultPageSize}
	if cfg != nil {
		if cfg.TopK > 0 {
			c.TopK = cfg.TopK
		}
		if cfg.PageSize > 0 {
			c.PageSize = cfg.PageSize
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Searcher{
		embedder: emb,
		index:    index,
		store:    store,
		cfg:      c,
		logger:   logger.With("component", "searcher"),
		metrics:  metrics,
	}
}

// Search embeds the query, ranks candidates in the vector index and joins
// them with their metadata records. Failures carry one of types.ErrValidation,
// types.ErrEmbedding, types.ErrIndex or types.ErrStore.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*types.SearchResponse, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "searcher.search")
	defer span.End()

	resp, err := s.search(ctx, req)

	s.metrics.RecordSearch(ctx, time.Since(start), types.Kind(err))
	telemetry.RecordError(span, err)
	if err != nil {
		if !errors.Is(err, types.ErrValidation) {
			s.logger.Error("search failed", "kind", types.Kind(err), "error", err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", resp.Total()))
	return resp, nil
}

func (s *Searcher) search(ctx context.Context, req SearchRequest) (*types.SearchResponse, error) {
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	// the query is embedded as given; only ingestion input is truncated
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbedding, err)
	}

	matches, err := s.index.Query(ctx, emb.Vector, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrIndex, err)
	}
	if len(matches) == 0 {
		return types.Paginate(nil, req.PageSize), nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	docs, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	results := s.join(matches, docs)
	return types.Paginate(results, req.PageSize), nil
}

// join keeps index order and drops matches without a valid metadata record
func (s *Searcher) join(matches []vectorindex.Match, docs []*types.Document) []types.ScoredDocument {
	byID := make(map[string]*types.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]types.ScoredDocument, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	dropped := 0
	for _, m := range matches {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		doc, ok := byID[m.ID]
		if !ok {
			dropped++
			continue
		}
		sd := types.NewScoredDocument(m.Score, doc)
		if err := sd.Validate(); err != nil {
			dropped++
			s.logger.Warn("dropping invalid record", "id", m.ID, "error", err)
			continue
		}
		results = append(results, sd)
	}
	if dropped > 0 {
		s.logger.Debug("matches without metadata", "dropped", dropped)
	}
	return results
}

// ClampTopK limits topK so that at most MaxMore results follow a primary
// page of pageSize, and never beyond MaxTopK.
func ClampTopK(topK, pageSize int) int {
	if topK > pageSize+MaxMore {
		topK = pageSize + MaxMore
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return topK
}

func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if embedder.RuneCount(req.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if req.PageSize <= 0 {
		req.PageSize = s.cfg.PageSize
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.TopK
	}
	req.TopK = ClampTopK(req.TopK, req.PageSize)
	return nil
}
