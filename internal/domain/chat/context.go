package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Relationship classification values for ConversationContext.
const (
	RelationshipBusiness = "business"
	RelationshipPersonal = "personal"
	RelationshipSupport  = "support"
	RelationshipUnknown  = "unknown"
)

// ConversationContext is the rolling per-chat context record derived from the
// most recently indexed messages. Replaced wholesale on every refresh; never
// partially updated.
type ConversationContext struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID string    `gorm:"type:text;not null;uniqueIndex" json:"chat_id"`

	Title        string         `gorm:"type:text;not null;default:''" json:"title"`
	Summary      string         `gorm:"type:text;not null;default:''" json:"summary"`
	KeyTopics    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"key_topics"`
	Relationship string         `gorm:"type:text;not null;default:'unknown'" json:"relationship"`

	// MessageCount is the number of indexed messages at the last refresh;
	// monotonically non-decreasing between refreshes of the same chat.
	MessageCount int `gorm:"not null;default:0" json:"message_count"`

	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (ConversationContext) TableName() string { return "conversation_context" }
