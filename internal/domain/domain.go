package domain

import (
	"github.com/chatlens/chatlens-backend/internal/domain/chat"
)

const (
	RelationshipBusiness = chat.RelationshipBusiness
	RelationshipPersonal = chat.RelationshipPersonal
	RelationshipSupport  = chat.RelationshipSupport
	RelationshipUnknown  = chat.RelationshipUnknown
)

type (
	Chat                = chat.Chat
	ChatMessage         = chat.ChatMessage
	EmbeddedMessage     = chat.EmbeddedMessage
	ConversationContext = chat.ConversationContext
)
