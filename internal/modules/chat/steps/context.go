package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/chatlens/chatlens-backend/internal/ai"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/observability"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
)

// ContextDraft is what the summarizer produces before normalization.
type ContextDraft struct {
	Summary      string   `json:"summary"`
	KeyTopics    []string `json:"key_topics"`
	Relationship string   `json:"relationship"`
}

// ContextSummarizer turns a transcript into a draft context. The default is
// model-backed; tests substitute a deterministic one.
type ContextSummarizer interface {
	Summarize(ctx context.Context, chatTitle string, transcript string) (ContextDraft, error)
}

type completerSummarizer struct {
	completer ai.Completer
}

// NewCompleterSummarizer adapts the completion gateway to ContextSummarizer.
func NewCompleterSummarizer(completer ai.Completer) ContextSummarizer {
	return &completerSummarizer{completer: completer}
}

func (s *completerSummarizer) Summarize(ctx context.Context, chatTitle string, transcript string) (ContextDraft, error) {
	system, user := promptConversationContext(chatTitle, transcript)
	temp := 0.2
	var draft ContextDraft
	err := s.completer.CompleteJSON(ctx, system, user, ai.CompleteOptions{
		Temperature: &temp,
		MaxTokens:   500,
	}, &draft)
	if err != nil {
		return ContextDraft{}, err
	}
	return draft, nil
}

func (d Deps) summarizer() ContextSummarizer {
	if d.Summarizer != nil {
		return d.Summarizer
	}
	return NewCompleterSummarizer(d.Completer)
}

// RefreshContext re-derives the rolling context for one chat from its most
// recent indexed messages and replaces the stored row. Serialized per chat; a
// chat with nothing indexed is left untouched. Summarizer failures degrade to
// a deterministic fallback so an indexed chat always has a context.
func RefreshContext(ctx context.Context, deps Deps, chatID string) error {
	if err := deps.validate(); err != nil {
		return err
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return fmt.Errorf("missing chat_id")
	}

	unlock := deps.State.lockChat(chatID)
	defer unlock()

	dbc := dbctx.Context{Ctx: ctx}
	total, err := deps.Embedded.CountByChat(dbc, chatID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	window, err := deps.Embedded.ListByChat(dbc, chatID, ContextWindowMessages)
	if err != nil {
		return err
	}
	if len(window) == 0 {
		return nil
	}

	title := chatTitle(deps, dbc, chatID, window)
	transcript := formatTranscript(window)

	status := "ok"
	draft, sErr := deps.summarizer().Summarize(ctx, title, transcript)
	if sErr != nil {
		deps.Log.Warn("context summarization failed, using fallback",
			"chat_id", chatID,
			"error", sErr.Error(),
		)
		draft = ContextDraft{
			Summary:      "Conversation in " + title,
			KeyTopics:    []string{},
			Relationship: types.RelationshipUnknown,
		}
		status = "fallback"
	}

	topics := draft.KeyTopics
	if topics == nil {
		topics = []string{}
	}
	rawTopics, err := json.Marshal(topics)
	if err != nil {
		return err
	}

	row := &types.ConversationContext{
		ChatID:       chatID,
		Title:        title,
		Summary:      strings.TrimSpace(draft.Summary),
		KeyTopics:    datatypes.JSON(rawTopics),
		Relationship: normalizeRelationship(draft.Relationship),
		MessageCount: int(total),
		UpdatedAt:    time.Now().UTC(),
	}
	if row.Summary == "" {
		row.Summary = "Conversation in " + title
	}
	if err := deps.Contexts.Upsert(dbc, row); err != nil {
		observability.Current().IncContextRefresh("error")
		return err
	}
	observability.Current().IncContextRefresh(status)
	return nil
}

// OnMessageIndexed triggers a context refresh after an incremental index
// write. Fire-and-forget: the caller's request must not wait on the model.
func OnMessageIndexed(deps Deps, chatID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := RefreshContext(ctx, deps, chatID); err != nil {
			deps.Log.Warn("background context refresh failed", "chat_id", chatID, "error", err.Error())
		}
	}()
}

func chatTitle(deps Deps, dbc dbctx.Context, chatID string, window []*types.EmbeddedMessage) string {
	if deps.Chats != nil {
		if chat, err := deps.Chats.GetByChatID(dbc, chatID); err == nil && strings.TrimSpace(chat.Title) != "" {
			return strings.TrimSpace(chat.Title)
		}
	}
	for _, m := range window {
		if t := strings.TrimSpace(m.ChatTitle); t != "" {
			return t
		}
	}
	return chatID
}
