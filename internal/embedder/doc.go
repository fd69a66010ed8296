// Package embedder turns document and query text into fixed-dimension vectors.
//
// Providers: OpenAI and Jina (OpenAI-compatible HTTP API), Gemini (Google
// generative-ai SDK) and Local, a deterministic hashing embedder that needs
// no network and is used in development and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "openai", APIKey: key}, logger)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: embedder.Truncate(content, 3000),
//	})
//
// # Truncation
//
// Ingestion embeds a prefix of the document text. Truncate cuts on character
// (rune) boundaries and is deterministic, so re-embedding the same content
// with the same limit reproduces the indexed vector exactly when the provider
// is deterministic. Query text is embedded unmodified.
//
// # Reliability
//
// Remote providers retry transient failures (network errors, 429, 5xx) with
// exponential backoff. New also wraps them in Guarded, which rate-limits
// calls and opens a circuit breaker after repeated failures:
//
//	if errors.Is(err, embedder.ErrCircuitOpen) {
//	    // provider is failing; the next poll cycle will retry
//	}
//
// An optional LRU cache keyed by provider, model and content hash avoids
// re-embedding repeated queries.
package embedder
