package types

// Response messages returned with every search
const (
	MessageFound    = "Here's what I found:"
	MessageNotFound = "No relevant documents found."
)

// ScoredDocument is one search hit: a vector-index match joined with its
// metadata record.
type ScoredDocument struct {
	Score float64  `json:"score"`
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Type  FileType `json:"type"`
}

// NewScoredDocument joins a similarity score with the document it belongs to
func NewScoredDocument(score float64, doc *Document) ScoredDocument {
	return ScoredDocument{
		Score: score,
		ID:    doc.ID,
		Title: doc.Title,
		URL:   doc.SourceURL,
		Type:  doc.FileType,
	}
}

// Validate checks if the scored document is complete enough to return to a caller
func (sd *ScoredDocument) Validate() error {
	if sd.ID == "" {
		return ErrInvalidDocumentID
	}
	if sd.URL == "" {
		return ErrMissingSourceURL
	}
	if !sd.Type.IsValid() {
		return ErrInvalidFileType
	}
	return nil
}

// SearchResponse is the paginated result of a search. Primary holds the head
// page and More the remainder, both in descending score order.
type SearchResponse struct {
	Message string           `json:"message"`
	Primary []ScoredDocument `json:"results"`
	More    []ScoredDocument `json:"more"`
}

// Paginate splits ranked results at pageSize, keeping order.
// A non-positive pageSize puts everything in Primary.
func Paginate(results []ScoredDocument, pageSize int) *SearchResponse {
	resp := &SearchResponse{
		Message: MessageFound,
		Primary: []ScoredDocument{},
		More:    []ScoredDocument{},
	}
	if len(results) == 0 {
		resp.Message = MessageNotFound
		return resp
	}
	if pageSize <= 0 || pageSize >= len(results) {
		resp.Primary = append(resp.Primary, results...)
		return resp
	}
	resp.Primary = append(resp.Primary, results[:pageSize]...)
	resp.More = append(resp.More, results[pageSize:]...)
	return resp
}

// Total returns the number of results across both pages
func (r *SearchResponse) Total() int {
	return len(r.Primary) + len(r.More)
}
