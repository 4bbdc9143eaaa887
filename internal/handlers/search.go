package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	chatmod "github.com/chatlens/chatlens-backend/internal/modules/chat"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type SearchHandler struct {
	log    *logger.Logger
	engine *chatmod.Engine
}

func NewSearchHandler(log *logger.Logger, engine *chatmod.Engine) *SearchHandler {
	return &SearchHandler{
		log:    log.With("handler", "SearchHandler"),
		engine: engine,
	}
}

type searchRequest struct {
	Query   string   `json:"query"`
	ChatIDs []string `json:"chat_ids"`
	Limit   int      `json:"limit"`
}

// POST /v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("query is required"))
		return
	}

	results, err := h.engine.Search(c.Request.Context(), chatmod.SearchInput{
		Query:   req.Query,
		ChatIDs: req.ChatIDs,
		Limit:   req.Limit,
	})
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"results": results})
}

type contextRequest struct {
	Query     string   `json:"query"`
	ChatIDs   []string `json:"chat_ids"`
	MaxTokens int      `json:"max_tokens"`
}

// POST /v1/context
func (h *SearchHandler) RelevantContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("query is required"))
		return
	}

	text, err := h.engine.RelevantContext(c.Request.Context(), chatmod.RetrieveInput{
		Query:     req.Query,
		ChatIDs:   req.ChatIDs,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, gin.H{"context": text})
}

// GET /v1/stats
func (h *SearchHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		RespondMapped(c, err)
		return
	}
	RespondOK(c, stats)
}
