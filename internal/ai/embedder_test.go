package ai

import (
	"context"
	"errors"
	"testing"
)

// fakeCache is an in-memory stand-in for the redis embed cache.
type fakeCache struct {
	store map[string][]float32
	gets  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string][]float32{}}
}

func (c *fakeCache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	c.gets++
	vec, ok := c.store[model+"\x00"+text]
	return vec, ok
}

func (c *fakeCache) Set(ctx context.Context, model, text string, vec []float32) {
	c.sets++
	c.store[model+"\x00"+text] = vec
}

func (c *fakeCache) Close() error { return nil }

func TestEmbedTextsRejectsEmptyInput(t *testing.T) {
	p := &fakeProvider{name: "p", dims: 3}
	e, err := NewEmbedder(testLogger(t), []Provider{p}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	if _, err := e.EmbedTexts(context.Background(), nil); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("nil input err = %v, want ErrEmbeddingUnavailable", err)
	}
	if _, err := e.EmbedTexts(context.Background(), []string{" ", "\t"}); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("all-blank input err = %v, want ErrEmbeddingUnavailable", err)
	}
	if p.embedCalls != 0 {
		t.Fatalf("provider should not be called for empty input")
	}
}

func TestEmbedderFallsBackToNextProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", dims: 3, embedErr: errors.New("timeout")}
	backup := &fakeProvider{name: "backup", dims: 3}
	e, err := NewEmbedder(testLogger(t), []Provider{primary, backup}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	vecs, err := e.EmbedTexts(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Fatalf("got %d vectors of %d dims", len(vecs), len(vecs[0]))
	}
	if primary.embedCalls != 1 || backup.embedCalls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", primary.embedCalls, backup.embedCalls)
	}
}

func TestEmbedderChainExhaustion(t *testing.T) {
	e, err := NewEmbedder(testLogger(t), []Provider{
		&fakeProvider{name: "a", dims: 3, embedErr: errors.New("down")},
		&fakeProvider{name: "b", dims: 3, embedErr: errors.New("also down")},
	}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	_, err = e.EmbedTexts(context.Background(), []string{"hello"})
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbedderPinsDims(t *testing.T) {
	p := &fakeProvider{name: "p", dims: 3}
	e, err := NewEmbedder(testLogger(t), []Provider{p}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	if _, err := e.EmbedTexts(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if e.Dims() != 3 {
		t.Fatalf("Dims = %d, want 3", e.Dims())
	}

	// The provider changing dimensionality mid-flight must be rejected rather
	// than poisoning the index.
	p.dims = 4
	if _, err := e.EmbedTexts(context.Background(), []string{"world"}); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("dims mismatch err = %v, want ErrEmbeddingUnavailable", err)
	}
	if e.Dims() != 3 {
		t.Fatalf("pinned dims changed to %d", e.Dims())
	}
}

func TestEmbedderRejectsCountMismatch(t *testing.T) {
	bad := &badCountProvider{fakeProvider{name: "bad", dims: 3}}
	e, err := NewEmbedder(testLogger(t), []Provider{bad}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	_, err = e.EmbedTexts(context.Background(), []string{"one", "two"})
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}

type badCountProvider struct{ fakeProvider }

func (b *badCountProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := b.fakeProvider.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return vecs[:1], nil
}

func TestEmbedderTruncatesLongInput(t *testing.T) {
	t.Setenv("AI_MAX_EMBED_CHARS", "10")
	p := &fakeProvider{name: "p", dims: 3}
	e, err := NewEmbedder(testLogger(t), []Provider{p}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	if _, err := e.EmbedTexts(context.Background(), []string{"0123456789abcdef"}); err != nil {
		t.Fatalf("EmbedTexts: %v", err)
	}
	if got := p.lastInputs[0]; got != "0123456789" {
		t.Fatalf("provider received %q, want truncated input", got)
	}
}

func TestEmbedQueryUsesCache(t *testing.T) {
	p := &fakeProvider{name: "p", dims: 3}
	cache := newFakeCache()
	e, err := NewEmbedder(testLogger(t), []Provider{p}, cache)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	first, err := e.EmbedQuery(context.Background(), "what did we decide")
	if err != nil {
		t.Fatalf("first EmbedQuery: %v", err)
	}
	second, err := e.EmbedQuery(context.Background(), "what did we decide")
	if err != nil {
		t.Fatalf("second EmbedQuery: %v", err)
	}
	if p.embedCalls != 1 {
		t.Fatalf("provider called %d times, want 1 (second hit should come from cache)", p.embedCalls)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}
	if len(first) != len(second) {
		t.Fatalf("cached vector dims differ: %d vs %d", len(first), len(second))
	}
}

func TestEmbedQueryEmpty(t *testing.T) {
	e, err := NewEmbedder(testLogger(t), []Provider{&fakeProvider{name: "p", dims: 3}}, nil)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if _, err := e.EmbedQuery(context.Background(), "   "); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
}
