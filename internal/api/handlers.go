package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

// MessageNoInput is returned for a missing or blank query
const MessageNoInput = "No input provided"

type searchRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: MessageNoInput})
		return
	}

	resp, err := s.search.Search(c.Request.Context(), searcher.SearchRequest{Query: req.Query})
	if err != nil {
		status, msg := errorStatus(err)
		c.JSON(status, errorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// errorStatus maps a search failure to an HTTP status and message
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return http.StatusBadRequest, MessageNoInput
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrEmbedding):
		return http.StatusInternalServerError, "Embedding failed: " + err.Error()
	case errors.Is(err, types.ErrIndex):
		return http.StatusInternalServerError, "Vector index query failed: " + err.Error()
	case errors.Is(err, types.ErrStore):
		return http.StatusInternalServerError, "Database error: " + err.Error()
	default:
		return http.StatusInternalServerError, "Internal error: " + err.Error()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"status": "healthy", "timestamp": time.Now().UTC()}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	c.JSON(status, body)
}
