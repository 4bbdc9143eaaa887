package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	chatmod "github.com/chatlens/chatlens-backend/internal/modules/chat"
	"github.com/chatlens/chatlens-backend/internal/modules/chat/steps"
	"github.com/chatlens/chatlens-backend/internal/platform/logger"
)

type AdminHandler struct {
	log    *logger.Logger
	engine *chatmod.Engine
}

func NewAdminHandler(log *logger.Logger, engine *chatmod.Engine) *AdminHandler {
	return &AdminHandler{
		log:    log.With("handler", "AdminHandler"),
		engine: engine,
	}
}

// POST /v1/admin/rebuild
//
// Kicks off a full index rebuild in the background and returns 202. A rebuild
// already in flight answers 409.
func (h *AdminHandler) Rebuild(c *gin.Context) {
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		out, err := h.engine.RebuildAll(ctx)
		if err != nil {
			done <- err
			if !errors.Is(err, steps.ErrRebuildInProgress) {
				h.log.Error("background rebuild failed", "error", err)
			}
			return
		}
		done <- nil
		h.log.Info("background rebuild finished",
			"chats", out.Chats,
			"indexed", out.Indexed,
			"skipped", out.Skipped,
		)
	}()

	// Give the single-flight latch a moment so a duplicate trigger gets an
	// honest 409 instead of a second 202.
	select {
	case err := <-done:
		if errors.Is(err, steps.ErrRebuildInProgress) {
			RespondMapped(c, err)
			return
		}
	case <-time.After(50 * time.Millisecond):
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "rebuild started"})
}
