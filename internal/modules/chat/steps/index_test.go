package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatlens/chatlens-backend/internal/ai"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
)

func TestUpsertMessageShortContentNoop(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	indexed, err := UpsertMessage(context.Background(), deps, &types.ChatMessage{
		ChatID:    "C1",
		MessageID: "m1",
		Content:   "short",
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	if indexed {
		t.Fatalf("short message should not be indexed")
	}
	if emb.calls != 0 {
		t.Fatalf("embedder should not be called for filtered messages, got %d calls", emb.calls)
	}

	count, err := deps.Embedded.CountMessages(dbctx.Context{Ctx: context.Background()})
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 0 {
		t.Fatalf("index should be empty, got %d rows", count)
	}
}

func TestUpsertMessageDuplicateNoop(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	msg := &types.ChatMessage{
		ChatID:    "C1",
		MessageID: "m1",
		Sender:    "alice",
		Content:   "hello there my friend",
		SentAt:    time.Now().UTC(),
	}

	indexed, err := UpsertMessage(context.Background(), deps, msg)
	if err != nil || !indexed {
		t.Fatalf("first upsert: indexed=%v err=%v", indexed, err)
	}
	indexed, err = UpsertMessage(context.Background(), deps, msg)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if indexed {
		t.Fatalf("duplicate upsert should be a no-op")
	}

	count, err := deps.Embedded.CountMessages(dbctx.Context{Ctx: context.Background()})
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestUpsertMessageEmbeddingFailurePropagates(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}, err: errors.New("providers down")}
	deps, _ := testDeps(t, emb, nil)

	_, err := UpsertMessage(context.Background(), deps, &types.ChatMessage{
		ChatID:    "C1",
		MessageID: "m1",
		Content:   "hello there my friend",
		SentAt:    time.Now().UTC(),
	})
	if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestRebuildAllFiltersShortMessages(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, db := testDeps(t, emb, nil)

	seedAt(t, db, "C1", "m1", "A", "Hello there friend", 0)
	seedAt(t, db, "C1", "m2", "B", "short", time.Minute)
	seedAt(t, db, "C1", "m3", "A", "Let's meet Friday at 3pm", 2*time.Minute)

	out, err := RebuildAll(context.Background(), deps)
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if out.Indexed != 2 {
		t.Fatalf("indexed = %d, want 2", out.Indexed)
	}
	if out.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", out.Skipped)
	}
	if !deps.State.Initialized() {
		t.Fatalf("state should be initialized after rebuild")
	}

	count, err := deps.Embedded.CountMessages(dbctx.Context{Ctx: context.Background()})
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 2 {
		t.Fatalf("index rows = %d, want 2", count)
	}
}

func TestRebuildAllIsIdempotent(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, db := testDeps(t, emb, nil)

	seedAt(t, db, "C1", "m1", "A", "Hello there friend", 0)
	seedAt(t, db, "C2", "m1", "B", "Another chat message here", time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := RebuildAll(context.Background(), deps); err != nil {
			t.Fatalf("RebuildAll #%d: %v", i+1, err)
		}
	}

	dbc := dbctx.Context{Ctx: context.Background()}
	count, err := deps.Embedded.CountMessages(dbc)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 2 {
		t.Fatalf("index rows after double rebuild = %d, want 2", count)
	}
	chats, err := deps.Embedded.CountChats(dbc)
	if err != nil {
		t.Fatalf("CountChats: %v", err)
	}
	if chats != 2 {
		t.Fatalf("indexed chats = %d, want 2", chats)
	}
}

func TestRebuildAllSingleFlight(t *testing.T) {
	emb := &stubEmbedder{defaultVec: []float32{1, 0, 0}}
	deps, _ := testDeps(t, emb, nil)

	if !deps.State.beginRebuild() {
		t.Fatalf("latch should be free")
	}
	defer deps.State.endRebuild()

	_, err := RebuildAll(context.Background(), deps)
	if !errors.Is(err, ErrRebuildInProgress) {
		t.Fatalf("expected ErrRebuildInProgress, got %v", err)
	}
}

func TestRebuildAllSkipsFailingChat(t *testing.T) {
	// C1's content embeds fine; C2 trips the per-batch failure path via a
	// poisoned embedder that fails every call after the first.
	emb := &flakyEmbedder{failAfter: 1, vec: []float32{1, 0, 0}}
	deps, db := testDeps(t, emb, nil)

	seedAt(t, db, "C1", "m1", "A", "Hello there friend", 0)
	seedAt(t, db, "C2", "m1", "B", "Another chat message here", time.Minute)

	out, err := RebuildAll(context.Background(), deps)
	if err != nil {
		t.Fatalf("RebuildAll should not fail outright: %v", err)
	}
	if out.Indexed != 1 {
		t.Fatalf("indexed = %d, want 1 (one chat failed)", out.Indexed)
	}
	if !deps.State.Initialized() {
		t.Fatalf("rebuild with partial failures still initializes the index")
	}
}

type flakyEmbedder struct {
	failAfter int
	vec       []float32
	calls     int
}

func (f *flakyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, ai.ErrEmbeddingUnavailable
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := f.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *flakyEmbedder) Dims() int { return len(f.vec) }
