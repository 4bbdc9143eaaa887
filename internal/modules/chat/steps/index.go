package steps

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/observability"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
	"github.com/chatlens/chatlens-backend/internal/platform/envutil"
)

const embedBatchSize = 64

type RebuildOutput struct {
	Chats   int
	Indexed int
	Skipped int
}

// RebuildAll drops the index and re-embeds every chat's history. Single-flight
// per process; per-message failures are logged and skipped so one bad message
// never aborts the batch.
func RebuildAll(ctx context.Context, deps Deps) (RebuildOutput, error) {
	if err := deps.validate(); err != nil {
		return RebuildOutput{}, err
	}
	if !deps.State.beginRebuild() {
		return RebuildOutput{}, ErrRebuildInProgress
	}
	defer deps.State.endRebuild()

	log := deps.Log.With("step", "RebuildAll")
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}

	if err := deps.Embedded.DeleteAll(dbc); err != nil {
		observability.Current().ObserveRebuild("error", time.Since(start))
		return RebuildOutput{}, fmt.Errorf("clear index: %w", err)
	}

	byChat, err := deps.Messages.ListAllByChat(dbc)
	if err != nil {
		observability.Current().ObserveRebuild("error", time.Since(start))
		return RebuildOutput{}, fmt.Errorf("load corpus: %w", err)
	}

	workers := envutil.GetEnvAsInt("EMBED_WORKERS", 4, deps.Log)
	if workers <= 0 {
		workers = 4
	}

	var indexed, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for chatID, msgs := range byChat {
		chatID, msgs := chatID, msgs
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			n, sk, cErr := indexChatHistory(gctx, deps, msgs)
			indexed.Add(int64(n))
			skipped.Add(int64(sk))
			if cErr != nil {
				log.Warn("chat indexing failed, skipping chat", "chat_id", chatID, "error", cErr.Error())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		observability.Current().ObserveRebuild("canceled", time.Since(start))
		return RebuildOutput{}, err
	}

	deps.State.setInitialized()

	out := RebuildOutput{
		Chats:   len(byChat),
		Indexed: int(indexed.Load()),
		Skipped: int(skipped.Load()),
	}

	if metrics := observability.Current(); metrics != nil {
		metrics.ObserveRebuild("ok", time.Since(start))
		metrics.IncIndexedMessages(out.Indexed)
		if msgs, mErr := deps.Embedded.CountMessages(dbc); mErr == nil {
			if chats, cErr := deps.Embedded.CountChats(dbc); cErr == nil {
				metrics.SetIndexSize(msgs, chats)
			}
		}
	}

	log.Info("index rebuilt",
		"chats", out.Chats,
		"indexed", out.Indexed,
		"skipped", out.Skipped,
		"took", time.Since(start).String(),
	)

	// Derive contexts for every chat that got rows. Failures degrade to the
	// fallback context inside RefreshContext.
	gc, gcCtx := errgroup.WithContext(ctx)
	gc.SetLimit(workers)
	for chatID := range byChat {
		chatID := chatID
		gc.Go(func() error {
			if gcCtx.Err() != nil {
				return gcCtx.Err()
			}
			if rErr := RefreshContext(gcCtx, deps, chatID); rErr != nil {
				log.Warn("context refresh after rebuild failed", "chat_id", chatID, "error", rErr.Error())
			}
			return nil
		})
	}
	if err := gc.Wait(); err != nil {
		return out, err
	}

	return out, nil
}

// indexChatHistory embeds one chat's messages in batches and inserts the rows.
func indexChatHistory(ctx context.Context, deps Deps, msgs []*types.ChatMessage) (indexed, skipped int, err error) {
	var keep []*types.ChatMessage
	for _, m := range msgs {
		if embeddableText(m.Content) == "" {
			skipped++
			observability.Current().IncIndexSkipped("too_short")
			continue
		}
		keep = append(keep, m)
	}
	if len(keep) == 0 {
		return 0, skipped, nil
	}

	dbc := dbctx.Context{Ctx: ctx}
	for _, batch := range chunkBy(keep, embedBatchSize) {
		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = embeddableText(m.Content)
		}

		vecs, eErr := deps.Embedder.EmbedTexts(ctx, texts)
		if eErr != nil {
			// The rest of this chat is unreachable without a provider;
			// keep whatever earlier batches landed.
			return indexed, skipped + len(batch), eErr
		}

		rows := make([]*types.EmbeddedMessage, 0, len(batch))
		for i, m := range batch {
			raw, vErr := encodeVector(vecs[i])
			if vErr != nil {
				skipped++
				continue
			}
			rows = append(rows, &types.EmbeddedMessage{
				ChatID:    m.ChatID,
				MessageID: m.MessageID,
				Content:   texts[i],
				Sender:    m.Sender,
				ChatTitle: m.ChatTitle,
				SentAt:    m.SentAt,
				Embedding: raw,
				Dims:      len(vecs[i]),
			})
		}
		if iErr := deps.Embedded.Insert(dbc, rows); iErr != nil {
			return indexed, skipped + len(batch), iErr
		}
		indexed += len(rows)
	}
	return indexed, skipped, nil
}

// UpsertMessage embeds and stores one message. Returns false without error
// when the message is filtered (too short) or already indexed.
func UpsertMessage(ctx context.Context, deps Deps, msg *types.ChatMessage) (bool, error) {
	if err := deps.validate(); err != nil {
		return false, err
	}
	if msg == nil {
		return false, fmt.Errorf("missing message")
	}

	text := embeddableText(msg.Content)
	if text == "" {
		observability.Current().IncIndexSkipped("too_short")
		return false, nil
	}

	dbc := dbctx.Context{Ctx: ctx}
	exists, err := deps.Embedded.Exists(dbc, msg.ChatID, msg.MessageID)
	if err != nil {
		return false, err
	}
	if exists {
		observability.Current().IncIndexSkipped("duplicate")
		return false, nil
	}

	vecs, err := deps.Embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return false, err
	}
	vec := vecs[0]
	if pinned := deps.Embedder.Dims(); pinned != 0 && len(vec) != pinned {
		return false, fmt.Errorf("embedding dims %d conflict with index dims %d", len(vec), pinned)
	}

	raw, err := encodeVector(vec)
	if err != nil {
		return false, err
	}
	row := &types.EmbeddedMessage{
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Content:   text,
		Sender:    msg.Sender,
		ChatTitle: msg.ChatTitle,
		SentAt:    msg.SentAt,
		Embedding: raw,
		Dims:      len(vec),
	}
	if err := deps.Embedded.Insert(dbc, []*types.EmbeddedMessage{row}); err != nil {
		return false, err
	}
	observability.Current().IncIndexedMessages(1)
	return true, nil
}
