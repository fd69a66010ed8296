package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/neurosearch/internal/indexer"
	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

// ServerName is the MCP server name
const ServerName = "neurosearch"

// SearchService runs searches
type SearchService interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*types.SearchResponse, error)
}

// Ingestor runs and reports poll cycles
type Ingestor interface {
	RunCycle(ctx context.Context) (*indexer.Statistics, error)
	Status() indexer.Status
}

// DocumentCounter reports how many documents are stored
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	searcher SearchService
	ingestor Ingestor // nil when no object store is configured
	counter  DocumentCounter
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. ingestor may be nil, in
// which case run_ingestion_cycle is not registered.
func NewServer(search SearchService, ingestor Ingestor, counter DocumentCounter, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version),
		searcher: search,
		ingestor: ingestor,
		counter:  counter,
		logger:   logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over stdin/stdout until the client disconnects or ctx
// is cancelled
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("mcp server listening on stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(ingestionStatusTool(), s.handleIngestionStatus)
	if s.ingestor != nil {
		s.mcp.AddTool(runIngestionCycleTool(), s.handleRunIngestionCycle)
	}
}
