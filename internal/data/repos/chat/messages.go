package chat

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/chatlens/chatlens-backend/internal/domain"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	Create(dbc dbctx.Context, row *types.ChatMessage) error
	// ListByChat returns messages newest-first. limit <= 0 means no limit.
	ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.ChatMessage, error)
	ListAllByChat(dbc dbctx.Context) (map[string][]*types.ChatMessage, error)
	DistinctChatIDs(dbc dbctx.Context) ([]string, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, row *types.ChatMessage) error {
	if row == nil {
		return fmt.Errorf("missing row")
	}
	if strings.TrimSpace(row.ChatID) == "" || strings.TrimSpace(row.MessageID) == "" {
		return fmt.Errorf("missing chat_id or message_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	// The ingestion bot may replay deliveries; replays are silent no-ops.
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *chatMessageRepo) ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.ChatMessage, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Where("chat_id = ?", chatID).
		Order("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ChatMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatMessageRepo) ListAllByChat(dbc dbctx.Context) (map[string][]*types.ChatMessage, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var rows []*types.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Order("chat_id ASC, sent_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string][]*types.ChatMessage{}
	for _, row := range rows {
		out[row.ChatID] = append(out[row.ChatID], row)
	}
	return out, nil
}

func (r *chatMessageRepo) DistinctChatIDs(dbc dbctx.Context) ([]string, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var ids []string
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Distinct("chat_id").
		Order("chat_id ASC").
		Pluck("chat_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
