package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
)

const (
	contextHeader    = "Relevant conversation history:"
	DefaultMaxTokens = 2000
)

type RetrieveInput struct {
	Query     string
	ChatIDs   []string
	MaxTokens int
}

// RelevantContext assembles a text block of ranked message excerpts under a
// token budget (chars/4 estimate). Greedy stop: the first entry that would
// overflow the budget ends assembly. The header is always emitted, so an
// empty index yields a header-only block, never an error.
func RelevantContext(ctx context.Context, deps Deps, in RetrieveInput) (string, error) {
	if err := deps.validate(); err != nil {
		return "", err
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	results, err := Search(ctx, deps, SearchInput{
		Query:   in.Query,
		ChatIDs: in.ChatIDs,
		Limit:   SearchCandidateLimit,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n")
	used := estimateTokens(contextHeader)

	for _, r := range results {
		entry := fmt.Sprintf("[%s] %s: %s", r.ChatTitle, r.Sender, r.Content)
		cost := estimateTokens(entry)
		if used+cost > maxTokens {
			break
		}
		b.WriteString(entry)
		b.WriteString("\n")
		used += cost
	}

	if len(in.ChatIDs) > 0 {
		appendChatContexts(ctx, deps, in.ChatIDs, &b, &used, maxTokens)
	}

	return b.String(), nil
}

// appendChatContexts adds each requested chat's stored context under the same
// budget accounting as the excerpts.
func appendChatContexts(ctx context.Context, deps Deps, chatIDs []string, b *strings.Builder, used *int, maxTokens int) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := deps.Contexts.GetByChatIDs(dbc, chatIDs)
	if err != nil {
		deps.Log.Warn("loading chat contexts for retrieval failed", "error", err.Error())
		return
	}
	for _, row := range rows {
		var topics []string
		_ = json.Unmarshal(row.KeyTopics, &topics)
		entry := fmt.Sprintf("Context for %s (%s; topics: %s): %s",
			row.Title, row.Relationship, strings.Join(topics, ", "), row.Summary)
		cost := estimateTokens(entry)
		if *used+cost > maxTokens {
			return
		}
		b.WriteString(entry)
		b.WriteString("\n")
		*used += cost
	}
}
