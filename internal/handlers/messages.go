package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatlens/chatlens-backend/internal/data/repos"
	types "github.com/chatlens/chatlens-backend/internal/domain"
	chatmod "github.com/chatlens/chatlens-backend/internal/modules/chat"
	"github.com/chatlens/chatlens-backend/internal/pkg/dbctx"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

// MessageHandler is the ingest hook the out-of-process bot posts new messages
// to. It writes the corpus row, indexes it, and schedules a context refresh.
type MessageHandler struct {
	log      *logger.Logger
	engine   *chatmod.Engine
	chats    repos.ChatRepo
	messages repos.ChatMessageRepo
}

func NewMessageHandler(log *logger.Logger, engine *chatmod.Engine, chats repos.ChatRepo, messages repos.ChatMessageRepo) *MessageHandler {
	return &MessageHandler{
		log:      log.With("handler", "MessageHandler"),
		engine:   engine,
		chats:    chats,
		messages: messages,
	}
}

type ingestRequest struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ChatTitle string    `json:"chat_title"`
	SentAt    time.Time `json:"sent_at"`
}

// POST /v1/messages
func (h *MessageHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.MessageID) == "" {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("chat_id and message_id are required"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("content is required"))
		return
	}
	if req.SentAt.IsZero() {
		req.SentAt = time.Now().UTC()
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.chats.Upsert(dbc, &types.Chat{
		ChatID:    req.ChatID,
		Title:     strings.TrimSpace(req.ChatTitle),
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		RespondMapped(c, err)
		return
	}

	row := &types.ChatMessage{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Sender:    strings.TrimSpace(req.Sender),
		Content:   req.Content,
		ChatTitle: strings.TrimSpace(req.ChatTitle),
		SentAt:    req.SentAt,
	}
	if err := h.messages.Create(dbc, row); err != nil {
		RespondMapped(c, err)
		return
	}

	indexed, err := h.engine.UpsertMessage(c.Request.Context(), row)
	if err != nil {
		RespondMapped(c, err)
		return
	}
	if indexed {
		h.engine.OnMessageIndexed(req.ChatID)
	}

	c.JSON(http.StatusCreated, gin.H{"indexed": indexed})
}
