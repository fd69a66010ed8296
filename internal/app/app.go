package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/neurosearch/internal/api"
	"github.com/dshills/neurosearch/internal/config"
	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/extractor"
	"github.com/dshills/neurosearch/internal/indexer"
	"github.com/dshills/neurosearch/internal/mcp"
	"github.com/dshills/neurosearch/internal/objectstore"
	"github.com/dshills/neurosearch/internal/recovery"
	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/internal/storage"
	"github.com/dshills/neurosearch/internal/telemetry"
	"github.com/dshills/neurosearch/internal/vectorindex"
)

// Options selects which halves of the system New builds
type Options struct {
	// Ingest builds the object store, extractor, recovery cache and
	// Coordinator. Query-only commands leave it off so they need no
	// object store credentials.
	Ingest  bool
	Version string
}

// App owns every long-lived handle of one process
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Embedder embedder.Embedder
	Store    storage.Store
	Index    vectorindex.Index
	Searcher *searcher.Searcher

	// Set only with Options.Ingest
	Source  objectstore.Provider
	Cache   *recovery.Cache
	Indexer *indexer.Indexer

	version  string
	closers  []func() error
	shutdown telemetry.ShutdownFunc
}

// New builds the application from cfg. On error every handle opened so far
// is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (a *App, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a = &App{Config: cfg, Logger: logger, version: opts.Version}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.shutdown, err = telemetry.InitTracer(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     opts.Version,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Insecure:    cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return a, err
	}
	if a.Metrics, err = telemetry.NewMetrics(nil); err != nil {
		return a, err
	}

	if a.Embedder, err = embedder.New(ctx, embedder.Config{
		Provider:          cfg.Embedding.Provider,
		APIKey:            cfg.Embedding.APIKey(),
		Model:             cfg.Embedding.Model,
		Endpoint:          cfg.Embedding.Endpoint,
		Dimension:         cfg.Embedding.Dimension,
		CacheSize:         cfg.Embedding.CacheSize,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, logger); err != nil {
		return a, fmt.Errorf("embedder: %w", err)
	}
	a.onClose(a.Embedder.Close)

	if err = a.openStores(ctx); err != nil {
		return a, err
	}

	a.Searcher = searcher.NewSearcher(a.Embedder, a.Index, a.Store, &searcher.Config{
		TopK:     cfg.Query.TopK,
		PageSize: cfg.Query.PageSize,
	}, logger, a.Metrics)

	if opts.Ingest {
		if err = a.buildIngest(); err != nil {
			return a, err
		}
	}

	logger.Info("application ready",
		"metadata", cfg.Metadata.Backend,
		"vector", cfg.Vector.Backend,
		"embedding_provider", a.Embedder.Provider(),
		"embedding_model", a.Embedder.Model(),
		"dimension", a.Embedder.Dimension(),
		"ingest", opts.Ingest)
	return a, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// openStores opens the metadata store and the vector index. When both live
// in Postgres they share one pool.
func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	dim := a.Embedder.Dimension()

	var pool *pgxpool.Pool
	if cfg.Metadata.Backend == config.MetadataPostgres && cfg.Vector.Backend == config.VectorPGVector {
		if cfg.Metadata.DatabaseURL == "" {
			return errors.New("metadata: DATABASE_URL is required for postgres")
		}
		p, err := pgxpool.New(ctx, cfg.Metadata.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		pool = p
		a.onClose(func() error { p.Close(); return nil })
	}

	switch cfg.Metadata.Backend {
	case config.MetadataPostgres:
		if pool != nil {
			s := storage.NewPostgresStorageFromPool(pool)
			if err := s.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			a.Store = s
			break
		}
		if cfg.Metadata.DatabaseURL == "" {
			return errors.New("metadata: DATABASE_URL is required for postgres")
		}
		s, err := storage.NewPostgresStorage(ctx, cfg.Metadata.DatabaseURL)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		a.Store = s
		a.onClose(s.Close)
	default:
		s, err := storage.NewSQLiteStorage(cfg.Metadata.SQLitePath)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		a.Store = s
		a.onClose(s.Close)
	}

	switch cfg.Vector.Backend {
	case config.VectorPinecone:
		idx, err := vectorindex.NewPinecone(vectorindex.PineconeConfig{
			Host:      cfg.Vector.PineconeHost,
			APIKey:    cfg.Vector.PineconeAPIKey,
			Namespace: cfg.Vector.PineconeNamespace,
			Dimension: dim,
		})
		if err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		a.Index = idx
		a.onClose(idx.Close)
	case config.VectorPGVector:
		var (
			idx *vectorindex.PGVector
			err error
		)
		if pool != nil {
			idx, err = vectorindex.NewPGVectorFromPool(ctx, pool, dim)
		} else {
			if cfg.Metadata.DatabaseURL == "" {
				return errors.New("vector index: DATABASE_URL is required for pgvector")
			}
			idx, err = vectorindex.NewPGVector(ctx, cfg.Metadata.DatabaseURL, dim)
		}
		if err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		a.Index = idx
		a.onClose(idx.Close)
	default:
		idx, err := vectorindex.NewSQLiteIndex(cfg.Vector.SQLitePath, dim)
		if err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
		a.Index = idx
		a.onClose(idx.Close)
	}
	return nil
}

func (a *App) buildIngest() error {
	cfg := a.Config

	source, err := NewSource(cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	a.Source = source

	cache, err := recovery.Open(cfg.Recovery.CachePath)
	if err != nil {
		return fmt.Errorf("recovery cache: %w", err)
	}
	a.Cache = cache
	a.onClose(cache.Close)

	ext := extractor.New(a.Logger, extractor.WithPDFMethods(
		extractor.NewGoPDF(),
		extractor.NewPoppler(cfg.Ingest.PDFToTextPath),
	))

	a.Indexer, err = indexer.New(indexer.Dependencies{
		Source:    source,
		Extractor: ext,
		Embedder:  a.Embedder,
		Store:     a.Store,
		Index:     a.Index,
		Cache:     cache,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	}, &indexer.Config{
		PageSize:        cfg.Ingest.PageSize,
		TruncateChars:   cfg.Ingest.TruncateChars,
		DocumentTimeout: cfg.Ingest.DocumentTimeout.Duration,
		TempDir:         cfg.Ingest.TempDir,
	})
	return err
}

// NewSource builds the configured object store provider
func NewSource(cfg config.ObjectStoreConfig) (objectstore.Provider, error) {
	switch cfg.Backend {
	case config.ObjectStoreFilesystem:
		fs, err := objectstore.NewFilesystem(cfg.Dir, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.ObjectStoreCloudinary, "":
		c, err := objectstore.NewCloudinary(objectstore.CloudinaryConfig{
			CloudName:     cfg.CloudName,
			APIKey:        cfg.APIKey,
			APISecret:     cfg.APISecret,
			ResourceTypes: cfg.ResourceTypes,
			Prefix:        cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

// HealthChecks returns the probes served by GET /health
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"metadata": func(ctx context.Context) error {
			_, err := a.Store.Count(ctx)
			return err
		},
	}
	if counter, ok := a.Index.(interface {
		Count(ctx context.Context) (int, error)
	}); ok {
		checks["vector_index"] = func(ctx context.Context) error {
			_, err := counter.Count(ctx)
			return err
		}
	}
	return checks
}

// APIServer builds the HTTP surface over the Query Service
func (a *App) APIServer() *api.Server {
	h := a.Config.HTTP
	return api.NewServer(a.Searcher, a.HealthChecks(), api.Config{
		Port:           h.Port,
		Mode:           h.GinMode,
		CORSOrigins:    h.CORSOrigins,
		RequestTimeout: h.RequestTimeout.Duration,
		ServiceName:    a.Config.Telemetry.ServiceName,
	}, a.Logger)
}

// MCPServer builds the MCP surface. Without the ingest half the
// run_ingestion_cycle tool is not offered.
func (a *App) MCPServer() *mcp.Server {
	var ingestor mcp.Ingestor
	if a.Indexer != nil {
		ingestor = a.Indexer
	}
	return mcp.NewServer(a.Searcher, ingestor, a.Store, a.version, a.Logger)
}

// RunWorker reconciles from the recovery cache when configured, then polls
// until ctx is cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Indexer == nil {
		return errors.New("worker requires the ingest components")
	}
	if a.Config.Ingest.ReconcileOnStart {
		report, err := a.Indexer.Reconcile(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// the cache is advisory; polling still makes progress
			a.Logger.Error("startup reconciliation failed", "error", err)
		} else {
			a.Logger.Info("startup reconciliation complete",
				"entries", report.Entries,
				"upserted", report.Upserted,
				"restored", report.Restored,
				"stale", report.Stale,
				"failed", report.Failed)
		}
	}
	return a.Indexer.Run(ctx, a.Config.Ingest.PollInterval.Duration)
}

// RunServer serves HTTP until ctx is cancelled
func (a *App) RunServer(ctx context.Context) error {
	return a.APIServer().Run(ctx)
}

// RunAll runs the worker and the HTTP server together. The first failure
// stops both.
func (a *App) RunAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunWorker(ctx) })
	g.Go(func() error { return a.RunServer(ctx) })
	return g.Wait()
}

// Close releases every handle in reverse order of opening and flushes traces
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
		a.shutdown = nil
	}
	return errors.Join(errs...)
}
