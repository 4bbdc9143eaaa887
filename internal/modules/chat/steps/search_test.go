package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatlens/chatlens-backend/internal/ai"
)

func TestSearchRanksByCosine(t *testing.T) {
	emb := &stubEmbedder{
		vectors: map[string][]float32{
			"project deadline": {1, 0, 0},
		},
		defaultVec: []float32{0, 0, 1},
	}
	deps, _ := testDeps(t, emb, nil)

	seedEmbedded(t, deps, "C1", "m1", "alice", "deadline is next Friday", "Work", []float32{0.9, 0.1, 0}, 0)
	seedEmbedded(t, deps, "C1", "m2", "bob", "what about lunch today", "Work", []float32{0, 1, 0}, time.Minute)
	seedEmbedded(t, deps, "C1", "m3", "alice", "deadline moved up a week", "Work", []float32{1, 0, 0}, 2*time.Minute)

	results, err := Search(context.Background(), deps, SearchInput{Query: "project deadline"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].MessageID != "m3" {
		t.Fatalf("top result = %s, want m3 (exact match)", results[0].MessageID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %v then %v", i, results[i-1].Score, results[i].Score)
		}
	}
}

func TestSearchTieBreakNewestFirst(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	vec := []float32{1, 0, 0}
	seedEmbedded(t, deps, "C1", "older", "a", "same direction message", "Work", vec, 0)
	seedEmbedded(t, deps, "C1", "newer", "b", "same direction message too", "Work", vec, time.Hour)

	results, err := Search(context.Background(), deps, SearchInput{Query: "anything at all"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].MessageID != "newer" {
		t.Fatalf("tie should break newest-first, got %s on top", results[0].MessageID)
	}
}

func TestSearchLimitApplied(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	for i, id := range []string{"m1", "m2", "m3"} {
		seedEmbedded(t, deps, "C1", id, "a", "a message with content", "Work", []float32{1, 0, 0}, time.Duration(i)*time.Minute)
	}

	results, err := Search(context.Background(), deps, SearchInput{Query: "a message", Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestSearchChatIDFilter(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	seedEmbedded(t, deps, "C1", "m1", "a", "message in chat one", "One", []float32{1, 0, 0}, 0)
	seedEmbedded(t, deps, "C2", "m1", "b", "message in chat two", "Two", []float32{1, 0, 0}, time.Minute)

	results, err := Search(context.Background(), deps, SearchInput{Query: "message", ChatIDs: []string{"C1"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ChatID != "C1" {
		t.Fatalf("result from chat %s, want C1", results[0].ChatID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	if _, err := Search(context.Background(), deps, SearchInput{Query: "   "}); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if emb.calls != 0 {
		t.Fatalf("embedder should not run for an empty query")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	results, err := Search(context.Background(), deps, SearchInput{Query: "anything"})
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearchEmbedFailureIsHardError(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}, err: errors.New("all providers down")}
	deps, _ := testDeps(t, emb, nil)

	_, err := Search(context.Background(), deps, SearchInput{Query: "anything"})
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}
