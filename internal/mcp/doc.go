// Package mcp implements the Model Context Protocol (MCP) server for
// NeuroSearch, so AI assistants can search the document collection.
//
// The server exposes these tools over stdio:
//   - search_documents: semantic search, same results as POST /search
//   - ingestion_status: document count plus the latest cycle and
//     reconciliation reports
//   - run_ingestion_cycle: poll the object store once (only when an
//     object store is configured)
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
//	neurosearch mcp
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "query": "cell membrane transport",
//	  "top_k": 50,
//	  "page_size": 10
//	}
//
//	Response:
//	{
//	  "message": "Here's what I found:",
//	  "results": [{"score": 0.83, "id": "...", "title": "biology-notes", "url": "https://...", "type": "pdf"}],
//	  "more": [],
//	  "total": 1
//	}
//
// # Error Handling
//
// Tool errors are returned as MCPError values with a JSON-RPC code:
//
//	-32602  invalid parameters (top_k or page_size out of range)
//	-32603  internal error (store unreachable, cycle failed)
//	-32002  a poll cycle is already running
//	-32004  query missing or empty
//	-32005  search failed; data.kind names the failing component
package mcp
