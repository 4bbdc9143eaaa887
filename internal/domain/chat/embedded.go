package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EmbeddedMessage is the retrieval projection over canonical chat messages.
// It is safe to rebuild from SQL truth; rows are never mutated after insert
// and only deleted on a full index rebuild.
type EmbeddedMessage struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID string    `gorm:"type:text;not null;uniqueIndex:idx_embedded_message_key,priority:1;index" json:"chat_id"`
	// MessageID pairs with ChatID as the natural key; at most one embedding
	// exists per canonical message.
	MessageID string `gorm:"type:text;not null;uniqueIndex:idx_embedded_message_key,priority:2" json:"message_id"`

	Content   string    `gorm:"type:text;not null" json:"content"`
	Sender    string    `gorm:"type:text;not null;default:''" json:"sender"`
	ChatTitle string    `gorm:"type:text;not null;default:''" json:"chat_title"`
	SentAt    time.Time `gorm:"not null;index" json:"sent_at"`

	Embedding datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"embedding"`
	Dims      int            `gorm:"not null;default:0" json:"dims"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (EmbeddedMessage) TableName() string { return "embedded_message" }
