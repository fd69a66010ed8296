package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/objectstore"
	"github.com/dshills/neurosearch/internal/recovery"
	"github.com/dshills/neurosearch/internal/storage"
	"github.com/dshills/neurosearch/internal/telemetry"
	"github.com/dshills/neurosearch/internal/vectorindex"
	"github.com/dshills/neurosearch/pkg/types"
)

// Defaults
const (
	DefaultPageSize        = objectstore.DefaultPageSize
	DefaultTruncateChars   = 3000
	DefaultDocumentTimeout = 2 * time.Minute
	DefaultPollInterval    = 10 * time.Second

	maxErrorMessages = 50
)

var (
	// ErrIndexingInProgress is returned when a cycle or reconciliation is already running
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrCacheWrite marks a failed recovery cache write after both stores succeeded
	ErrCacheWrite = errors.New("recovery cache write failed")
	// ErrMissingDependency is returned by New for an incomplete Dependencies
	ErrMissingDependency = errors.New("missing indexer dependency")
)

// Stage is the last pipeline step a source object reached
type Stage string

const (
	StageFilter   Stage = "filter"
	StageDedup    Stage = "dedup"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageEmbed    Stage = "embed"
	StageInsert   Stage = "insert"
	StageUpsert   Stage = "upsert"
	StageCache    Stage = "cache"
	StageDone     Stage = "done"
)

// TextExtractor turns a downloaded file into plain text. It never fails:
// unreadable files yield "".
type TextExtractor interface {
	Extract(ctx context.Context, path string, fileType types.FileType) string
}

// RecoveryCache is the durable local record of ingested documents
type RecoveryCache interface {
	Put(entry recovery.Entry) error
	LoadAll() (map[string]recovery.Entry, int, error)
}

// Dependencies are the handles the Coordinator drives. All but Logger and
// Metrics are required.
type Dependencies struct {
	Source    objectstore.Provider
	Extractor TextExtractor
	Embedder  embedder.Embedder
	Store     storage.Store
	Index     vectorindex.Index
	Cache     RecoveryCache
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
}

func (d Dependencies) validate() error {
	missing := make([]string, 0)
	if d.Source == nil {
		missing = append(missing, "source")
	}
	if d.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if d.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if d.Store == nil {
		missing = append(missing, "store")
	}
	if d.Index == nil {
		missing = append(missing, "index")
	}
	if d.Cache == nil {
		missing = append(missing, "cache")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Config contains configuration for the Coordinator
type Config struct {
	PageSize        int           // Objects requested per listing (default: 100)
	TruncateChars   int           // Embedding input budget in characters (default: 3000)
	DocumentTimeout time.Duration // Upper bound for one object's pipeline (default: 2m)
	TempDir         string        // Download directory (default: os.TempDir())
}

// DefaultConfig returns the default Coordinator configuration
func DefaultConfig() *Config {
	return &Config{
		PageSize:        DefaultPageSize,
		TruncateChars:   DefaultTruncateChars,
		DocumentTimeout: DefaultDocumentTimeout,
	}
}

// Statistics summarises one poll cycle
type Statistics struct {
	Listed        int
	Ingested      int
	Skipped       int // already ingested
	Unsupported   int
	Duplicates    int // lost an insert race on source_url
	Failed        int
	Duration      time.Duration
	ErrorMessages []string
}

func (s *Statistics) addError(msg string) {
	if len(s.ErrorMessages) < maxErrorMessages {
		s.ErrorMessages = append(s.ErrorMessages, msg)
	}
}

// Status is a point-in-time view of the Coordinator
type Status struct {
	Running       bool
	Cycles        int64
	LastCycleAt   time.Time
	LastCycle     *Statistics
	LastError     string
	LastReconcile *ReconcileReport
}

// Indexer is the Ingestion Coordinator. It processes one object at a time
// and never runs two cycles concurrently.
type Indexer struct {
	deps   Dependencies
	cfg    Config
	logger *slog.Logger
	lock   IndexLock

	newID func() string
	now   func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Coordinator. A nil config uses DefaultConfig.
func New(deps Dependencies, config *Config) (*Indexer, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TruncateChars <= 0 {
		cfg.TruncateChars = DefaultTruncateChars
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = DefaultDocumentTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Indexer{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "indexer"),
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Status returns a copy of the current status
func (idx *Indexer) Status() Status {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	s := idx.status
	s.Running = idx.lock.Held()
	return s
}

// EmbeddingInput is the exact text embedded for a document: the content
// truncated to maxChars, else the title, else the source URL.
func EmbeddingInput(title, content, sourceURL string, maxChars int) string {
	if strings.TrimSpace(content) != "" {
		return embedder.Truncate(content, maxChars)
	}
	if strings.TrimSpace(title) != "" {
		return title
	}
	return sourceURL
}

// Run polls the object store every interval until ctx is cancelled. The
// first cycle starts immediately; a tick that arrives while a cycle is
// still running is dropped.
func (idx *Indexer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	idx.logger.Info("worker started", "interval", interval.String(), "source", idx.deps.Source.Name())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := idx.RunCycle(ctx); err != nil && ctx.Err() == nil {
			idx.logger.Warn("poll cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			idx.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle performs one poll cycle: list, then ingest each new supported
// object. Per-object failures are logged and counted; only listing and
// cancellation fail the cycle.
func (idx *Indexer) RunCycle(ctx context.Context) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	ctx, span := telemetry.Tracer().Start(ctx, "indexer.cycle")
	defer span.End()

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	err := idx.runCycle(ctx, stats)
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("objects.listed", stats.Listed),
		attribute.Int("objects.ingested", stats.Ingested),
		attribute.Int("objects.failed", stats.Failed),
	)
	telemetry.RecordError(span, err)
	idx.deps.Metrics.RecordCycle(ctx, stats.Duration)
	idx.finishCycle(stats, err)

	if err != nil {
		return stats, err
	}
	idx.logger.Info("poll cycle complete",
		"listed", stats.Listed,
		"ingested", stats.Ingested,
		"skipped", stats.Skipped,
		"unsupported", stats.Unsupported,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"duration", stats.Duration.String())
	return stats, nil
}

func (idx *Indexer) runCycle(ctx context.Context, stats *Statistics) error {
	objects, err := idx.deps.Source.List(ctx, idx.cfg.PageSize)
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}
	stats.Listed = len(objects)

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, stage, err := idx.processObject(ctx, obj)
		idx.deps.Metrics.RecordDocument(ctx, outcome, string(stage))

		switch outcome {
		case telemetry.OutcomeIngested:
			stats.Ingested++
		case telemetry.OutcomeSkipped:
			stats.Skipped++
		case telemetry.OutcomeUnsupported:
			stats.Unsupported++
		case telemetry.OutcomeDuplicate:
			stats.Duplicates++
		default:
			stats.Failed++
			stats.addError(fmt.Sprintf("%s: %s: %v", obj.Key, stage, err))
			idx.logger.Warn("document ingestion failed",
				"key", obj.Key,
				"source_url", obj.URL,
				"stage", string(stage),
				"kind", types.Kind(err),
				"error", err)
		}
	}
	return nil
}

func (idx *Indexer) finishCycle(stats *Statistics, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.status.Cycles++
	idx.status.LastCycleAt = idx.now()
	idx.status.LastCycle = stats
	idx.status.LastError = ""
	if err != nil {
		idx.status.LastError = err.Error()
	}
}

// processObject runs the pipeline for one listed object and reports the
// outcome and the stage reached.
func (idx *Indexer) processObject(ctx context.Context, obj objectstore.Object) (string, Stage, error) {
	fileType, ok := obj.FileType()
	if !ok || obj.URL == "" {
		return telemetry.OutcomeUnsupported, StageFilter, nil
	}

	ctx, cancel := context.WithTimeout(ctx, idx.cfg.DocumentTimeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "indexer.document")
	defer span.End()
	span.SetAttributes(
		attribute.String("source_url", obj.URL),
		attribute.String("file_type", string(fileType)),
	)

	outcome, stage, err := idx.ingest(ctx, obj, fileType)
	span.SetAttributes(attribute.String("stage", string(stage)), attribute.String("outcome", outcome))
	telemetry.RecordError(span, err)
	return outcome, stage, err
}

func (idx *Indexer) ingest(ctx context.Context, obj objectstore.Object, fileType types.FileType) (string, Stage, error) {
	exists, err := idx.deps.Store.ExistsBySourceURL(ctx, obj.URL)
	if err != nil {
		return telemetry.OutcomeFailed, StageDedup, fmt.Errorf("%w: %w", types.ErrStore, err)
	}
	if exists {
		return telemetry.OutcomeSkipped, StageDedup, nil
	}

	path, cleanup, err := idx.download(ctx, obj, fileType)
	if err != nil {
		return telemetry.OutcomeFailed, StageDownload, err
	}
	defer cleanup()

	title := obj.Title()
	text := idx.deps.Extractor.Extract(ctx, path, fileType)
	if text == "" {
		idx.logger.Info("no text extracted, embedding title", "source_url", obj.URL, "file_type", string(fileType))
	}

	input := EmbeddingInput(title, text, obj.URL, idx.cfg.TruncateChars)
	emb, err := idx.deps.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: input})
	if err != nil {
		return telemetry.OutcomeFailed, StageEmbed, fmt.Errorf("%w: %w", types.ErrEmbedding, err)
	}

	doc := &types.Document{
		ID:         idx.newID(),
		Title:      title,
		SourceURL:  obj.URL,
		FileType:   fileType,
		Content:    text,
		IngestedAt: idx.now(),
	}
	if err := idx.deps.Store.Insert(ctx, doc); err != nil {
		if errors.Is(err, types.ErrDuplicateKey) {
			idx.logger.Info("source already ingested by another writer", "source_url", obj.URL)
			return telemetry.OutcomeDuplicate, StageInsert, nil
		}
		return telemetry.OutcomeFailed, StageInsert, fmt.Errorf("%w: %w", types.ErrStore, err)
	}

	entry := vectorindex.Entry{ID: doc.ID, Vector: emb.Vector, Title: doc.Title, SourceURL: doc.SourceURL}
	if err := idx.deps.Index.Upsert(ctx, entry); err != nil {
		// the record stays without a vector; the next cycle dedups it away
		return telemetry.OutcomeFailed, StageUpsert, fmt.Errorf("%w: %s has no vector: %w", types.ErrIndex, doc.ID, err)
	}

	err = idx.deps.Cache.Put(recovery.Entry{
		ID:            doc.ID,
		Vector:        emb.Vector,
		Title:         doc.Title,
		SourceURL:     doc.SourceURL,
		FileType:      doc.FileType,
		Content:       doc.Content,
		InputHash:     embedder.ComputeHash(input),
		TruncateChars: idx.cfg.TruncateChars,
		Provider:      emb.Provider,
		Model:         emb.Model,
		CachedAt:      idx.now(),
	})
	if err != nil {
		return telemetry.OutcomeFailed, StageCache, fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	idx.logger.Info("document ingested",
		"id", doc.ID,
		"source_url", doc.SourceURL,
		"file_type", string(doc.FileType),
		"chars", embedder.RuneCount(text))
	return telemetry.OutcomeIngested, StageDone, nil
}

// download copies the object into a private temp file. The returned
// cleanup removes it and is safe to call on every path.
func (idx *Indexer) download(ctx context.Context, obj objectstore.Object, fileType types.FileType) (string, func(), error) {
	rc, err := idx.deps.Source.Open(ctx, obj)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch %s: %w", obj.Key, err)
	}
	defer func() { _ = rc.Close() }()

	f, err := os.CreateTemp(idx.cfg.TempDir, "neurosearch-*."+string(fileType))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			idx.logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}

	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to download %s: %w", obj.Key, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, cleanup, nil
}
