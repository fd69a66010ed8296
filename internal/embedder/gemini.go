package embedder

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Embedder with Google's embedding models
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	cache     *Cache
	retry     RetryConfig
}

// NewGeminiProvider creates a Gemini embedder. An empty model uses DefaultGeminiModel.
func NewGeminiProvider(ctx context.Context, apiKey, model string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:    client,
		model:     model,
		dimension: GeminiDimension,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	key := cacheKey(ProviderGemini, model, req.Text)
	if g.cache != nil {
		if emb, ok := g.cache.Get(key); ok {
			return emb, nil
		}
	}

	vector, err := retryWithBackoff(ctx, g.retry, func() ([]float32, error) {
		resp, err := g.client.EmbeddingModel(model).EmbedContent(ctx, genai.Text(req.Text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: gemini: %w", ErrProviderFailed, err)
	}
	if len(vector) != g.dimension {
		return nil, fmt.Errorf("%w: gemini returned %d, want %d", ErrDimensionMismatch, len(vector), g.dimension)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderGemini,
		Model:     model,
		Hash:      ComputeHash(req.Text),
	}
	if g.cache != nil {
		g.cache.Set(key, emb)
	}
	return emb, nil
}

// WithDimension overrides the expected vector size
func (g *GeminiProvider) WithDimension(dim int) *GeminiProvider {
	if dim > 0 {
		g.dimension = dim
	}
	return g
}

func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}
