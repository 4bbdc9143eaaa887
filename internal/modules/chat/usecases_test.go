package chat

import (
	"context"
	"testing"
	"time"

	"github.com/chatlens/chatlens-backend/internal/ai"
	"github.com/chatlens/chatlens-backend/internal/data/repos"
	"github.com/chatlens/chatlens-backend/internal/data/repos/testutil"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/modules/chat/steps"
)

// engineEmbedder hashes nothing; every text maps onto the same unit vector so
// ranking is deterministic for facade-level tests.
type engineEmbedder struct{ dims int }

func (e *engineEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dims)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func (e *engineEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *engineEmbedder) Dims() int { return e.dims }

type engineCompleter struct{}

func (engineCompleter) Complete(ctx context.Context, system, user string, opts ai.CompleteOptions) (string, error) {
	return "", ai.ErrCompletionUnavailable
}

func (engineCompleter) CompleteJSON(ctx context.Context, system, user string, opts ai.CompleteOptions, out any) error {
	return ai.ErrCompletionUnavailable
}

type engineSummarizer struct{}

func (engineSummarizer) Summarize(ctx context.Context, chatTitle, transcript string) (steps.ContextDraft, error) {
	return steps.ContextDraft{
		Summary:      "Summary of " + chatTitle,
		KeyTopics:    []string{"general"},
		Relationship: "personal",
	}, nil
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	all := repos.New(db, log)
	return NewEngine(EngineDeps{
		DB:         db,
		Log:        log,
		Embedder:   &engineEmbedder{dims: 4},
		Completer:  engineCompleter{},
		Summarizer: engineSummarizer{},
		Chats:      all.Chat,
		Messages:   all.ChatMessage,
		Embedded:   all.EmbeddedMessage,
		Contexts:   all.ConversationContext,
	})
}

func TestEngineLifecycle(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if e.Initialized() {
		t.Fatalf("engine should start uninitialized")
	}

	indexed, err := e.UpsertMessage(ctx, &types.ChatMessage{
		ChatID:    "C1",
		MessageID: "m1",
		Sender:    "alice",
		Content:   "the launch moved to Friday",
		ChatTitle: "Launch",
		SentAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil || !indexed {
		t.Fatalf("UpsertMessage: indexed=%v err=%v", indexed, err)
	}

	results, err := e.Search(ctx, SearchInput{Query: "launch date"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].MessageID != "m1" {
		t.Fatalf("results = %v", results)
	}

	block, err := e.RelevantContext(ctx, RetrieveInput{Query: "launch date"})
	if err != nil {
		t.Fatalf("RelevantContext: %v", err)
	}
	if block == "" {
		t.Fatalf("expected a non-empty context block")
	}

	if err := e.RefreshContext(ctx, "C1"); err != nil {
		t.Fatalf("RefreshContext: %v", err)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalMessages != 1 || stats.TotalChats != 1 || stats.TotalContexts != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.EmbeddingDims != 4 {
		t.Fatalf("dims = %d, want 4", stats.EmbeddingDims)
	}
	if stats.Initialized {
		t.Fatalf("incremental indexing alone must not mark the index initialized")
	}
}

func TestEngineRebuildMarksInitialized(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	testutil.SeedMessage(t, e.deps.DB, "C1", "m1", "alice", "a message long enough to index", time.Now().UTC())

	out, err := e.RebuildAll(ctx)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if out.Indexed != 1 {
		t.Fatalf("indexed = %d, want 1", out.Indexed)
	}
	if !e.Initialized() {
		t.Fatalf("rebuild should initialize the engine")
	}
}
