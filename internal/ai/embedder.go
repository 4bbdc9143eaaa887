package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	rediscache "github.com/chatlens/chatlens-backend/internal/clients/redis"
	"github.com/chatlens/chatlens-backend/internal/platform/envutil"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

// Embedder turns text into vectors via an ordered provider chain. Dimensions
// are pinned on the first successful call so vectors from different providers
// never mix in the index.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dims() int
}

type embedder struct {
	log       *logger.Logger
	providers []Provider
	cache     rediscache.EmbedCache
	maxChars  int

	mu   sync.RWMutex
	dims int
}

// NewEmbedder builds the gateway over the given providers, tried in order.
// cache may be nil.
func NewEmbedder(log *logger.Logger, providers []Provider, cache rediscache.EmbedCache) (Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one embedding provider required")
	}

	maxChars := envutil.GetEnvAsInt("AI_MAX_EMBED_CHARS", 8000, log)
	if maxChars <= 0 {
		maxChars = 8000
	}

	return &embedder{
		log:       log.With("service", "Embedder"),
		providers: providers,
		cache:     cache,
		maxChars:  maxChars,
	}, nil
}

func (e *embedder) Dims() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no input texts", ErrEmbeddingUnavailable)
	}
	allEmpty := true
	clean := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			allEmpty = false
		}
		clean[i] = truncateRunes(t, e.maxChars)
	}
	if allEmpty {
		return nil, fmt.Errorf("%w: all input texts empty", ErrEmbeddingUnavailable)
	}

	var lastErr error
	for _, p := range e.providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		vecs, err := p.Embed(ctx, clean)
		if err != nil {
			lastErr = err
			e.log.Warn("embedding provider failed, trying next",
				"provider", p.Name(),
				"model", p.EmbedModel(),
				"error", err.Error(),
			)
			continue
		}
		if len(vecs) != len(clean) {
			lastErr = fmt.Errorf("provider %s returned %d vectors for %d inputs", p.Name(), len(vecs), len(clean))
			continue
		}
		if err := e.pinDims(p, vecs); err != nil {
			lastErr = err
			continue
		}
		return vecs, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider produced embeddings")
	}
	return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, lastErr)
}

func (e *embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrEmbeddingUnavailable)
	}
	query = truncateRunes(query, e.maxChars)

	cacheModel := e.providers[0].EmbedModel()
	if e.cache != nil {
		if vec, ok := e.cache.Get(ctx, cacheModel, query); ok {
			return vec, nil
		}
	}

	vecs, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]

	if e.cache != nil {
		e.cache.Set(ctx, cacheModel, query, vec)
	}
	return vec, nil
}

// pinDims records the vector dimensionality on first success and rejects a
// provider whose vectors disagree with the pinned value. Mixing dims would
// silently zero out cosine ranking.
func (e *embedder) pinDims(p Provider, vecs [][]float32) error {
	got := 0
	for _, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("provider %s returned an empty vector", p.Name())
		}
		if got == 0 {
			got = len(v)
		} else if len(v) != got {
			return fmt.Errorf("provider %s returned mixed vector dims (%d vs %d)", p.Name(), got, len(v))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = got
		e.log.Info("embedding dims pinned", "provider", p.Name(), "model", p.EmbedModel(), "dims", got)
		return nil
	}
	if e.dims != got {
		return fmt.Errorf("provider %s dims %d conflict with pinned %d", p.Name(), got, e.dims)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
