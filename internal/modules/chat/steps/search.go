package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chatlens/chatlens-backend/internal/observability"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
)

type SearchInput struct {
	Query   string
	ChatIDs []string
	Limit   int
}

type SearchResult struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ChatTitle string    `json:"chat_title"`
	SentAt    time.Time `json:"sent_at"`
	Score     float64   `json:"score"`
}

// Search embeds the query and ranks the candidate set by cosine similarity,
// newest first on ties. An unavailable query embedding is a hard error; an
// empty index is an empty result.
func Search(ctx context.Context, deps Deps, in SearchInput) ([]SearchResult, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	start := time.Now()
	queryVec, err := deps.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		observability.Current().ObserveSearch("embed_error", time.Since(start))
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	candidates, err := deps.Embedded.ListCandidates(dbc, in.ChatIDs)
	if err != nil {
		observability.Current().ObserveSearch("db_error", time.Since(start))
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := cosine(queryVec, decodeVector(c.Embedding))
		results = append(results, SearchResult{
			ChatID:    c.ChatID,
			MessageID: c.MessageID,
			Sender:    c.Sender,
			Content:   c.Content,
			ChatTitle: c.ChatTitle,
			SentAt:    c.SentAt,
			Score:     score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SentAt.After(results[j].SentAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	observability.Current().ObserveSearch("ok", time.Since(start))
	return results, nil
}
