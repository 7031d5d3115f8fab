package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vita-chat/internal/model"
	"vita-chat/internal/storage"
	"vita-chat/pkg/logger"
)

// respondError writes the backend error body the client parses.
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Message: message, StatusCode: status})
}

// respondStorageError maps a storage error to its HTTP status.
func respondStorageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrConversationNotFound):
		respondError(c, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, storage.ErrEntryNotFound):
		respondError(c, http.StatusNotFound, "Medical entry not found")
	case errors.Is(err, storage.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, storage.ErrEmailTaken):
		respondError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, storage.ErrInvalidData):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
