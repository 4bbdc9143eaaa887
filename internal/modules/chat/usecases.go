package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/chatlens/chatlens-backend/internal/ai"
	"github.com/chatlens/chatlens-backend/internal/data/repos"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/modules/chat/steps"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type EngineDeps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Embedder  ai.Embedder
	Completer ai.Completer

	// Optional summarizer override; nil means the Completer-backed default.
	Summarizer steps.ContextSummarizer

	Chats    repos.ChatRepo
	Messages repos.ChatMessageRepo
	Embedded repos.EmbeddedMessageRepo
	Contexts repos.ConversationContextRepo
}

// Engine is the retrieval-context facade: index maintenance, semantic search,
// context assembly, and per-chat rolling contexts.
type Engine struct {
	deps steps.Deps
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{deps: steps.Deps{
		DB:         deps.DB,
		Log:        deps.Log,
		Embedder:   deps.Embedder,
		Completer:  deps.Completer,
		Summarizer: deps.Summarizer,
		Chats:      deps.Chats,
		Messages:   deps.Messages,
		Embedded:   deps.Embedded,
		Contexts:   deps.Contexts,
		State:      steps.NewState(),
	}}
}

type (
	SearchInput   = steps.SearchInput
	SearchResult  = steps.SearchResult
	RetrieveInput = steps.RetrieveInput
	RebuildOutput = steps.RebuildOutput
)

// Stats is the operational snapshot served by the stats endpoint.
type Stats struct {
	TotalMessages int64 `json:"total_messages"`
	TotalChats    int64 `json:"total_chats"`
	TotalContexts int64 `json:"total_contexts"`
	Initialized   bool  `json:"initialized"`
	EmbeddingDims int   `json:"embedding_dims"`
}

// Initialized reports whether a full rebuild has completed in this process.
func (e *Engine) Initialized() bool {
	return e.deps.State.Initialized()
}

// RebuildAll rebuilds the whole index from the corpus. Single-flight;
// concurrent calls get steps.ErrRebuildInProgress.
func (e *Engine) RebuildAll(ctx context.Context) (RebuildOutput, error) {
	return steps.RebuildAll(ctx, e.deps)
}

// UpsertMessage indexes one message incrementally. The bool reports whether a
// row was written (false for filtered or duplicate messages).
func (e *Engine) UpsertMessage(ctx context.Context, msg *types.ChatMessage) (bool, error) {
	return steps.UpsertMessage(ctx, e.deps, msg)
}

func (e *Engine) Search(ctx context.Context, in SearchInput) ([]SearchResult, error) {
	return steps.Search(ctx, e.deps, in)
}

func (e *Engine) RelevantContext(ctx context.Context, in RetrieveInput) (string, error) {
	return steps.RelevantContext(ctx, e.deps, in)
}

func (e *Engine) RefreshContext(ctx context.Context, chatID string) error {
	return steps.RefreshContext(ctx, e.deps, chatID)
}

// OnMessageIndexed schedules a background context refresh for the chat.
func (e *Engine) OnMessageIndexed(chatID string) {
	steps.OnMessageIndexed(e.deps, chatID)
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	dbc := dbctx.Context{Ctx: ctx}
	messages, err := e.deps.Embedded.CountMessages(dbc)
	if err != nil {
		return Stats{}, err
	}
	chats, err := e.deps.Embedded.CountChats(dbc)
	if err != nil {
		return Stats{}, err
	}
	contexts, err := e.deps.Contexts.Count(dbc)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalMessages: messages,
		TotalChats:    chats,
		TotalContexts: contexts,
		Initialized:   e.deps.State.Initialized(),
		EmbeddingDims: e.deps.Embedder.Dims(),
	}, nil
}
