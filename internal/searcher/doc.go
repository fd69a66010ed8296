// Package searcher is the query service: semantic search over ingested
// documents.
//
//	s := searcher.NewSearcher(emb, index, store, nil, logger, metrics)
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "mitochondria"})
//
// A search embeds the query, takes the top 50 candidates from the vector
// index, fetches their metadata in one batch and returns them in index
// order split into results (first 10) and more (the rest). Candidates with
// no metadata record are dropped silently.
package searcher
