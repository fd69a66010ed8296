package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over ingested PDF, DOCX and TXT documents",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates requested from the vector index (1-200); at most page_size+40 are used",
					"default":     50,
					"minimum":     1,
					"maximum":     200,
				},
				"page_size": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results in the primary page; the rest are returned under more",
					"default":     10,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"query"},
		},
	}
}

// ingestionStatusTool returns the tool definition for ingestion_status
func ingestionStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingestion_status",
		Description: "Report document counts and the outcome of the latest poll cycle and reconciliation",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// runIngestionCycleTool returns the tool definition for run_ingestion_cycle
func runIngestionCycleTool() mcp.Tool {
	return mcp.Tool{
		Name:        "run_ingestion_cycle",
		Description: "Poll the object store once and ingest any new documents",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
