package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatlens/chatlens-backend/internal/ai"
	"github.com/chatlens/chatlens-backend/internal/modules/chat/steps"
	"github.com/chatlens/chatlens-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondMapped translates engine errors into HTTP statuses: provider outages
// are 503, a busy rebuild is 409, everything else 500.
func RespondMapped(c *gin.Context, err error) {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		RespondError(c, ae.Status, ae.Code, ae.Err)
	case errors.Is(err, ai.ErrEmbeddingUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "embedding_unavailable", err)
	case errors.Is(err, ai.ErrCompletionUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "completion_unavailable", err)
	case errors.Is(err, steps.ErrRebuildInProgress):
		RespondError(c, http.StatusConflict, "rebuild_in_progress", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
