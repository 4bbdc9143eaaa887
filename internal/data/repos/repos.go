package repos

import (
	"gorm.io/gorm"

	"github.com/chatlens/chatlens-backend/internal/data/repos/chat"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type ChatRepo = chat.ChatRepo
type ChatMessageRepo = chat.ChatMessageRepo
type EmbeddedMessageRepo = chat.EmbeddedMessageRepo
type ConversationContextRepo = chat.ConversationContextRepo

// All bundles every repo behind one constructor for wiring.
type All struct {
	Chat                chat.ChatRepo
	ChatMessage         chat.ChatMessageRepo
	EmbeddedMessage     chat.EmbeddedMessageRepo
	ConversationContext chat.ConversationContextRepo
}

func New(db *gorm.DB, log *logger.Logger) All {
	return All{
		Chat:                chat.NewChatRepo(db, log),
		ChatMessage:         chat.NewChatMessageRepo(db, log),
		EmbeddedMessage:     chat.NewEmbeddedMessageRepo(db, log),
		ConversationContext: chat.NewConversationContextRepo(db, log),
	}
}
