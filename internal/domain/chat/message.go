package chat

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a monitored conversation thread. Rows are written by the
// out-of-process ingestion bot; this service only reads them.
type Chat struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID string    `gorm:"type:text;not null;uniqueIndex" json:"chat_id"`
	Title  string    `gorm:"type:text;not null;default:''" json:"title"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Chat) TableName() string { return "chat" }

// ChatMessage is the canonical message record. Immutable once ingested;
// (chat_id, message_id) is the natural key.
type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    string    `gorm:"type:text;not null;uniqueIndex:idx_chat_message_key,priority:1;index" json:"chat_id"`
	MessageID string    `gorm:"type:text;not null;uniqueIndex:idx_chat_message_key,priority:2" json:"message_id"`

	Sender  string `gorm:"type:text;not null;default:''" json:"sender"`
	Content string `gorm:"type:text;not null" json:"content"`

	ChatTitle string    `gorm:"type:text;not null;default:''" json:"chat_title"`
	SentAt    time.Time `gorm:"not null;index" json:"sent_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
