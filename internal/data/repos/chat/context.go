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

type ConversationContextRepo interface {
	Upsert(dbc dbctx.Context, row *types.ConversationContext) error
	GetByChatID(dbc dbctx.Context, chatID string) (*types.ConversationContext, error)
	GetByChatIDs(dbc dbctx.Context, chatIDs []string) ([]*types.ConversationContext, error)
	Count(dbc dbctx.Context) (int64, error)
}

type conversationContextRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationContextRepo(db *gorm.DB, log *logger.Logger) ConversationContextRepo {
	return &conversationContextRepo{db: db, log: log.With("repo", "ConversationContextRepo")}
}

func (r *conversationContextRepo) Upsert(dbc dbctx.Context, row *types.ConversationContext) error {
	if row == nil || strings.TrimSpace(row.ChatID) == "" {
		return fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	// Full replace: a refresh never merges with the previous context row.
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "summary", "key_topics", "relationship", "message_count", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *conversationContextRepo) GetByChatID(dbc dbctx.Context, chatID string) (*types.ConversationContext, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ConversationContext
	if err := txx.WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationContextRepo) GetByChatIDs(dbc dbctx.Context, chatIDs []string) ([]*types.ConversationContext, error) {
	if len(chatIDs) == 0 {
		return []*types.ConversationContext{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ConversationContext
	if err := txx.WithContext(dbc.Ctx).
		Where("chat_id IN ?", chatIDs).
		Order("chat_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationContextRepo) Count(dbc dbctx.Context) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationContext{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
