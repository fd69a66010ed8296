// Package types provides shared type definitions for NeuroSearch.
//
// Document is the metadata record written by the ingestion worker and read
// back by the query service. ScoredDocument is a search hit: a vector-index
// match joined with its Document. SearchResponse splits ranked hits into a
// head page and the remainder:
//
//	resp := types.Paginate(hits, 10)
//	fmt.Println(resp.Message, len(resp.Primary), len(resp.More))
//
// # Errors
//
// The failure kinds (ErrExtraction, ErrEmbedding, ErrIndex, ErrStore,
// ErrDuplicateKey, ErrValidation) are wrapped by the indexer and searcher so
// callers can branch with errors.Is:
//
//	if errors.Is(err, types.ErrValidation) {
//	    // 400
//	}
package types
