package ai

import (
	"context"
	"errors"

	"github.com/chatlens/chatlens-backend/internal/platform/openai"
)

// Provider is the narrow surface both model backends expose. The openai and
// ollama platform clients satisfy it structurally.
type Provider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Complete(ctx context.Context, system string, user string, opts openai.CompletionOptions) (string, error)
	Name() string
	Model() string
	EmbedModel() string
}

// Sentinel errors callers branch on. Provider-specific causes are wrapped
// underneath and reachable via errors.Unwrap.
var (
	// ErrEmbeddingUnavailable means every configured embedding provider
	// failed for the request.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrCompletionUnavailable means every configured completion provider
	// failed for the request.
	ErrCompletionUnavailable = errors.New("completion unavailable")

	// ErrMalformedStructuredResponse means a provider answered but the text
	// could not be coerced into the requested JSON shape even after cleanup.
	ErrMalformedStructuredResponse = errors.New("malformed structured response")
)
