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

type ChatRepo interface {
	Upsert(dbc dbctx.Context, row *types.Chat) error
	GetByChatID(dbc dbctx.Context, chatID string) (*types.Chat, error)
	ListAll(dbc dbctx.Context) ([]*types.Chat, error)
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, log *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: log.With("repo", "ChatRepo")}
}

func (r *chatRepo) Upsert(dbc dbctx.Context, row *types.Chat) error {
	if row == nil || strings.TrimSpace(row.ChatID) == "" {
		return fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
		}).
		Create(row).Error
}

func (r *chatRepo) GetByChatID(dbc dbctx.Context, chatID string) (*types.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Chat
	if err := txx.WithContext(dbc.Ctx).
		Where("chat_id = ?", chatID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *chatRepo) ListAll(dbc dbctx.Context) ([]*types.Chat, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Chat
	if err := txx.WithContext(dbc.Ctx).
		Order("chat_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
