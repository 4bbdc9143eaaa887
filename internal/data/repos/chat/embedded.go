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

type EmbeddedMessageRepo interface {
	Insert(dbc dbctx.Context, rows []*types.EmbeddedMessage) error
	Exists(dbc dbctx.Context, chatID, messageID string) (bool, error)
	DeleteAll(dbc dbctx.Context) error
	// ListCandidates returns every indexed row, optionally restricted to
	// chatIDs. Ranking happens in the engine, not in SQL.
	ListCandidates(dbc dbctx.Context, chatIDs []string) ([]*types.EmbeddedMessage, error)
	ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.EmbeddedMessage, error)
	CountByChat(dbc dbctx.Context, chatID string) (int64, error)
	CountMessages(dbc dbctx.Context) (int64, error)
	CountChats(dbc dbctx.Context) (int64, error)
}

type embeddedMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddedMessageRepo(db *gorm.DB, log *logger.Logger) EmbeddedMessageRepo {
	return &embeddedMessageRepo{db: db, log: log.With("repo", "EmbeddedMessageRepo")}
}

func (r *embeddedMessageRepo) Insert(dbc dbctx.Context, rows []*types.EmbeddedMessage) error {
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if strings.TrimSpace(row.ChatID) == "" || strings.TrimSpace(row.MessageID) == "" {
			return fmt.Errorf("missing chat_id or message_id")
		}
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *embeddedMessageRepo) Exists(dbc dbctx.Context, chatID, messageID string) (bool, error) {
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(messageID) == "" {
		return false, fmt.Errorf("missing chat_id or message_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.EmbeddedMessage{}).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *embeddedMessageRepo) DeleteAll(dbc dbctx.Context) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("1 = 1").
		Delete(&types.EmbeddedMessage{}).Error
}

func (r *embeddedMessageRepo) ListCandidates(dbc dbctx.Context, chatIDs []string) ([]*types.EmbeddedMessage, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Model(&types.EmbeddedMessage{})
	if len(chatIDs) > 0 {
		q = q.Where("chat_id IN ?", chatIDs)
	}
	var out []*types.EmbeddedMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddedMessageRepo) ListByChat(dbc dbctx.Context, chatID string, limit int) ([]*types.EmbeddedMessage, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.EmbeddedMessage{}).
		Where("chat_id = ?", chatID).
		Order("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.EmbeddedMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddedMessageRepo) CountByChat(dbc dbctx.Context, chatID string) (int64, error) {
	if strings.TrimSpace(chatID) == "" {
		return 0, fmt.Errorf("missing chat_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.EmbeddedMessage{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *embeddedMessageRepo) CountMessages(dbc dbctx.Context) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.EmbeddedMessage{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *embeddedMessageRepo) CountChats(dbc dbctx.Context) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.EmbeddedMessage{}).
		Distinct("chat_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
