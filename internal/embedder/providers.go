package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultGeminiModel = "text-embedding-004"
	DefaultLocalModel  = "local-hashing-v1"

	// Default API endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	GeminiDimension = 768
	LocalDimension  = 384

	DefaultCacheSize = 10000
	DefaultTimeout   = 30 * time.Second

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// APIProvider implements Embedder against an OpenAI-compatible
// /v1/embeddings endpoint. OpenAI and Jina share the wire format.
type APIProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewOpenAIProvider creates an OpenAI embedder. Empty model and endpoint use the defaults.
func NewOpenAIProvider(apiKey, model, endpoint string, cache *Cache) (*APIProvider, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if endpoint == "" {
		endpoint = DefaultOpenAIURL
	}
	return newAPIProvider(ProviderOpenAI, endpoint, apiKey, model, OpenAIDimension, cache)
}

// NewJinaProvider creates a Jina AI embedder. Empty model and endpoint use the defaults.
func NewJinaProvider(apiKey, model, endpoint string, cache *Cache) (*APIProvider, error) {
	if model == "" {
		model = DefaultJinaModel
	}
	if endpoint == "" {
		endpoint = DefaultJinaURL
	}
	return newAPIProvider(ProviderJina, endpoint, apiKey, model, JinaDimension, cache)
}

func newAPIProvider(name, endpoint, apiKey, model string, dimension int, cache *Cache) (*APIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s api key not set", ErrNoProviderEnabled, name)
	}
	return &APIProvider{
		name:      name,
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

// WithDimension overrides the expected vector size, for models that return
// a non-default dimension
func (p *APIProvider) WithDimension(dim int) *APIProvider {
	if dim > 0 {
		p.dimension = dim
	}
	return p
}

func (p *APIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	key := cacheKey(p.name, model, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(key); ok {
			return emb, nil
		}
	}

	vector, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
		return p.callAPI(ctx, req.Text, model)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
	}
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: %s returned %d, want %d", ErrDimensionMismatch, p.name, len(vector), p.dimension)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  p.name,
		Model:     model,
		Hash:      ComputeHash(req.Text),
	}
	if p.cache != nil {
		p.cache.Set(key, emb)
	}
	return emb, nil
}

func (p *APIProvider) callAPI(ctx context.Context, text, model string) ([]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": []string{text},
		"model": model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return apiResp.Data[0].Embedding, nil
}

func (p *APIProvider) Dimension() int {
	return p.dimension
}

func (p *APIProvider) Provider() string {
	return p.name
}

func (p *APIProvider) Model() string {
	return p.model
}

func (p *APIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline by hashing word tokens into a fixed
// number of buckets (the hashing trick) and normalizing. Output is fully
// deterministic and texts sharing vocabulary land close together, which is
// enough for development and tests without a model server.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a new local embedder. A non-positive dimension uses LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		cache:     cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(ProviderLocal, l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.vectorize(req.Text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      ComputeHash(req.Text),
	}

	if l.cache != nil {
		l.cache.Set(key, emb)
	}
	return emb, nil
}

func (l *LocalProvider) vectorize(text string) []float32 {
	vector := make([]float32, l.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		// punctuation-only input still needs a non-zero vector
		tokens = []string{text}
	}
	nonZero := false
	for _, tok := range tokens {
		sum := hashToken(tok)
		idx := sum % uint64(l.dimension)
		if sum>>63 == 1 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}
	for _, v := range vector {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		vector[hashToken(text)%uint64(l.dimension)] = 1
	}
	return NormalizeVector(vector)
}

func hashToken(tok string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	return h.Sum64()
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
