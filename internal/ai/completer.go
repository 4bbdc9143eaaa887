package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatlens/chatlens-backend/internal/platform/logger"
	"github.com/chatlens/chatlens-backend/internal/platform/openai"
)

// CompleteOptions tune a completion through the gateway. When ExpectJSON is
// set the gateway owns response cleanup; callers receive either a parseable
// object string or ErrMalformedStructuredResponse.
type CompleteOptions struct {
	Temperature *float64
	MaxTokens   int
	ExpectJSON  bool
}

// Completer produces text completions via the same ordered provider chain as
// the Embedder.
type Completer interface {
	Complete(ctx context.Context, system string, user string, opts CompleteOptions) (string, error)
	CompleteJSON(ctx context.Context, system string, user string, opts CompleteOptions, out any) error
}

type completer struct {
	log       *logger.Logger
	providers []Provider
}

func NewCompleter(log *logger.Logger, providers []Provider) (Completer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one completion provider required")
	}
	return &completer{
		log:       log.With("service", "Completer"),
		providers: providers,
	}, nil
}

func (c *completer) Complete(ctx context.Context, system string, user string, opts CompleteOptions) (string, error) {
	provOpts := openai.CompletionOptions{
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := p.Complete(ctx, system, user, provOpts)
		if err != nil {
			lastErr = err
			c.log.Warn("completion provider failed, trying next",
				"provider", p.Name(),
				"model", p.Model(),
				"error", err.Error(),
			)
			continue
		}
		if !opts.ExpectJSON {
			return text, nil
		}
		cleaned, cErr := CleanJSONResponse(text)
		if cErr != nil {
			// The provider answered; a malformed body is data for the
			// caller, not a reason to burn the rest of the chain.
			return "", cErr
		}
		return cleaned, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider produced a completion")
	}
	return "", fmt.Errorf("%w: %v", ErrCompletionUnavailable, lastErr)
}

func (c *completer) CompleteJSON(ctx context.Context, system string, user string, opts CompleteOptions, out any) error {
	opts.ExpectJSON = true
	text, err := c.Complete(ctx, system, user, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedStructuredResponse, err)
	}
	return nil
}

// Status phrases some backends prepend before the object body.
var jsonNoisePrefixes = []string{
	"here is the json:",
	"here's the json:",
	"here is the requested json:",
	"sure, here is the json:",
	"json:",
}

// CleanJSONResponse strips non-JSON wrapping from a model answer: known
// status-phrase prefixes, markdown code fences, then everything outside the
// outermost first-{ .. last-} span.
func CleanJSONResponse(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	lower := strings.ToLower(s)
	for _, prefix := range jsonNoisePrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object span in response", ErrMalformedStructuredResponse)
	}
	return s[start : end+1], nil
}
