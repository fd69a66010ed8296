package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker rejects calls to a failing provider
var ErrCircuitOpen = errors.New("embedding circuit breaker open")

// GuardConfig tunes the rate limiter and circuit breaker around a remote provider
type GuardConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	MinRequests       uint32        // requests in a window before the breaker may trip
	FailureRatio      float64       // failure ratio that trips the breaker
	OpenTimeout       time.Duration // how long the breaker stays open
	Interval          time.Duration // window after which closed-state counts reset
}

// DefaultGuardConfig returns limits suited to hosted embedding APIs
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MinRequests:       3,
		FailureRatio:      0.6,
		OpenTimeout:       60 * time.Second,
		Interval:          10 * time.Second,
	}
}

// Guarded wraps an Embedder with client-side rate limiting and a circuit
// breaker so a failing provider is not hammered by every poll cycle.
type Guarded struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner. logger receives breaker state changes.
func NewGuarded(inner Embedder, cfg GuardConfig, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Provider() + "-embeddings",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// caller-side cancellations and bad input say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyText)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guarded{inner: inner, limiter: limiter, breaker: breaker}
}

func (g *Guarded) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.GenerateEmbedding(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, g.inner.Provider())
		}
		return nil, err
	}
	return result.(*Embedding), nil
}

// State reports the breaker state, for status endpoints
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

func (g *Guarded) Dimension() int {
	return g.inner.Dimension()
}

func (g *Guarded) Provider() string {
	return g.inner.Provider()
}

func (g *Guarded) Model() string {
	return g.inner.Model()
}

func (g *Guarded) Close() error {
	return g.inner.Close()
}
