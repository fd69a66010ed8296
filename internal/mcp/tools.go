package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/neurosearch/internal/indexer"
	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // A poll cycle or reconciliation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeSearchFailed       = -32005 // Embedding, index or store failure during search
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", searcher.DefaultTopK)
	if topK < 1 || topK > searcher.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxTopK), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}
	pageSize := getIntDefault(args, "page_size", searcher.DefaultPageSize)
	if pageSize < 1 || pageSize > searcher.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("page_size must be between 1 and %d", searcher.MaxTopK), map[string]interface{}{
			"param": "page_size",
			"value": pageSize,
		})
	}

	// more never exceeds searcher.MaxMore, whatever top_k asks for
	topK = searcher.ClampTopK(topK, pageSize)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{Query: query, TopK: topK, PageSize: pageSize})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return nil, newMCPError(ErrorCodeEmptyQuery, err.Error(), map[string]interface{}{"param": "query"})
		}
		return nil, newMCPError(ErrorCodeSearchFailed, "search failed", map[string]interface{}{
			"kind":  types.Kind(err),
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"message": resp.Message,
		"results": resp.Primary,
		"more":    resp.More,
		"total":   resp.Total(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestionStatus handles the ingestion_status tool invocation
func (s *Server) handleIngestionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.counter.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count documents", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"documents_count": count,
		"worker_attached": s.ingestor != nil,
	}
	if s.ingestor == nil {
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	status := s.ingestor.Status()
	response["running"] = status.Running
	response["cycles"] = status.Cycles
	if !status.LastCycleAt.IsZero() {
		response["last_cycle_at"] = status.LastCycleAt.Format(time.RFC3339)
	}
	if status.LastError != "" {
		response["last_error"] = status.LastError
	}
	if status.LastCycle != nil {
		response["last_cycle"] = cycleStats(status.LastCycle)
	}
	if r := status.LastReconcile; r != nil {
		response["last_reconcile"] = map[string]interface{}{
			"entries":     r.Entries,
			"upserted":    r.Upserted,
			"restored":    r.Restored,
			"conflicts":   r.Conflicts,
			"stale":       r.Stale,
			"drifted":     r.Drifted,
			"failed":      r.Failed,
			"duration_ms": r.Duration.Milliseconds(),
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRunIngestionCycle handles the run_ingestion_cycle tool invocation
func (s *Server) handleRunIngestionCycle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.ingestor.RunCycle(ctx)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "a poll cycle is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "poll cycle failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(cycleStats(stats))), nil
}

func cycleStats(stats *indexer.Statistics) map[string]interface{} {
	return map[string]interface{}{
		"listed":      stats.Listed,
		"ingested":    stats.Ingested,
		"skipped":     stats.Skipped,
		"unsupported": stats.Unsupported,
		"duplicates":  stats.Duplicates,
		"failed":      stats.Failed,
		"errors":      stats.ErrorMessages,
		"duration_ms": stats.Duration.Milliseconds(),
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// the framework encodes returned errors
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
