package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/chatlens/chatlens-backend/internal/ai"
	chatrepo "github.com/chatlens/chatlens-backend/internal/data/repos/chat"
	"github.com/chatlens/chatlens-backend/internal/data/repos/testutil"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
)

// stubEmbedder returns canned vectors keyed by exact text; unknown texts get
// a fixed default vector.
type stubEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	defaultVec []float32
	err        error
	calls      int
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrEmbeddingUnavailable, s.err)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = s.defaultVec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Dims() int {
	if len(s.defaultVec) > 0 {
		return len(s.defaultVec)
	}
	return 0
}

type stubCompleter struct {
	text string
	err  error
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string, opts ai.CompleteOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubCompleter) CompleteJSON(ctx context.Context, system, user string, opts ai.CompleteOptions, out any) error {
	if s.err != nil {
		return s.err
	}
	return fmt.Errorf("%w: stub has no payload", ai.ErrMalformedStructuredResponse)
}

type stubSummarizer struct {
	draft ContextDraft
	err   error
	calls int
}

func (s *stubSummarizer) Summarize(ctx context.Context, chatTitle, transcript string) (ContextDraft, error) {
	s.calls++
	if s.err != nil {
		return ContextDraft{}, s.err
	}
	return s.draft, nil
}

func testDeps(t *testing.T, emb ai.Embedder, sum ContextSummarizer) (Deps, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	if sum == nil {
		sum = &stubSummarizer{draft: ContextDraft{
			Summary:      "A test conversation",
			KeyTopics:    []string{"testing"},
			Relationship: "business",
		}}
	}
	return Deps{
		DB:         db,
		Log:        log,
		Embedder:   emb,
		Completer:  &stubCompleter{},
		Summarizer: sum,
		Chats:      chatrepo.NewChatRepo(db, log),
		Messages:   chatrepo.NewChatMessageRepo(db, log),
		Embedded:   chatrepo.NewEmbeddedMessageRepo(db, log),
		Contexts:   chatrepo.NewConversationContextRepo(db, log),
		State:      NewState(),
	}, db
}

func seedAt(t *testing.T, db *gorm.DB, chatID, messageID, sender, content string, offset time.Duration) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testutil.SeedMessage(t, db, chatID, messageID, sender, content, base.Add(offset))
}

func seedEmbedded(t *testing.T, deps Deps, chatID, messageID, sender, content, chatTitle string, vec []float32, offset time.Duration) {
	t.Helper()
	raw, err := encodeVector(vec)
	if err != nil {
		t.Fatalf("encodeVector: %v", err)
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = deps.Embedded.Insert(dbctx.Context{Ctx: context.Background()}, []*types.EmbeddedMessage{{
		ChatID:    chatID,
		MessageID: messageID,
		Sender:    sender,
		Content:   content,
		ChatTitle: chatTitle,
		SentAt:    base.Add(offset),
		Embedding: raw,
		Dims:      len(vec),
	}})
	if err != nil {
		t.Fatalf("seed embedded row: %v", err)
	}
}

func wantContains(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected %q to contain %q", s, sub)
	}
}
