package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const pineconeAPIVersion = "2024-07"

// PineconeConfig configures the Pinecone data-plane client
type PineconeConfig struct {
	Host      string // index host, e.g. https://docs-abc123.svc.us-east-1.pinecone.io
	APIKey    string
	Namespace string
	Dimension int
	Timeout   time.Duration
}

// Pinecone is a minimal REST client for a Pinecone serverless index. It
// assumes the index was created with the cosine metric.
type Pinecone struct {
	host      string
	apiKey    string
	namespace string
	dimension int
	client    *http.Client
}

// NewPinecone creates a Pinecone client
func NewPinecone(cfg PineconeConfig) (*Pinecone, error) {
	if cfg.Host == "" {
		return nil, errors.New("pinecone index host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone api key is required")
	}
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Pinecone{
		host:      host,
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (p *Pinecone) Upsert(ctx context.Context, entry Entry) error {
	if err := entry.Validate(p.dimension); err != nil {
		return err
	}

	body := map[string]any{
		"vectors": []pineconeVector{{
			ID:     entry.ID,
			Values: entry.Vector,
			Metadata: map[string]string{
				"title": entry.Title,
				"url":   entry.SourceURL,
			},
		}},
	}
	if p.namespace != "" {
		body["namespace"] = p.namespace
	}

	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := p.postJSON(ctx, "/vectors/upsert", body, &resp); err != nil {
		return err
	}
	if resp.UpsertedCount != 1 {
		return fmt.Errorf("pinecone upsert: expected 1 vector, got %d", resp.UpsertedCount)
	}
	return nil
}

func (p *Pinecone) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidEntry)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	body := map[string]any{
		"vector":          vector,
		"topK":            k,
		"includeMetadata": true,
		"includeValues":   false,
	}
	if p.namespace != "" {
		body["namespace"] = p.namespace
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := p.postJSON(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := Match{ID: m.ID, Score: m.Score}
		if v, ok := m.Metadata["title"].(string); ok {
			match.Title = v
		}
		if v, ok := m.Metadata["url"].(string); ok {
			match.SourceURL = v
		}
		matches = append(matches, match)
	}
	// the API already ranks, but keep the contract explicit
	sortMatches(matches)
	return topK(matches, k), nil
}

func (p *Pinecone) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *Pinecone) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone POST %s failed: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
