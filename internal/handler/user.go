package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vita-chat/internal/model"
	"vita-chat/internal/storage"
)

const maxAvatarBytes = 5 << 20

type avatar struct {
	contentType string
	data        []byte
}

// UserHandler serves the signed-in user's profile. Uploaded avatars are kept
// in memory and served under /uploads.
type UserHandler struct {
	storage storage.Storage

	mu      sync.RWMutex
	avatars map[string]avatar
}

func NewUserHandler(store storage.Storage) *UserHandler {
	return &UserHandler{storage: store, avatars: make(map[string]avatar)}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	user := currentUser(c)
	if !applyProfile(c, user, req.Name, req.Email) {
		return
	}
	if err := h.storage.UpdateUser(user); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile accepts a multipart form with optional name and email fields
// and an optional avatar file.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := currentUser(c)

	var name, email *string
	if v, ok := c.GetPostForm("name"); ok {
		name = &v
	}
	if v, ok := c.GetPostForm("email"); ok {
		email = &v
	}
	if !applyProfile(c, user, name, email) {
		return
	}

	if fh, err := c.FormFile("avatar"); err == nil {
		if fh.Size > maxAvatarBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "avatar is too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxAvatarBytes))
		f.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		key := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		h.mu.Lock()
		h.avatars[key] = avatar{contentType: contentType, data: data}
		h.mu.Unlock()
		user.ImgURL = "/uploads/" + key
		user.UpdatedAt = time.Now()
	} else if err != http.ErrMissingFile {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.storage.UpdateUser(user); err != nil {
		respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Avatar(c *gin.Context) {
	h.mu.RLock()
	a, ok := h.avatars[c.Param("name")]
	h.mu.RUnlock()
	if !ok {
		respondError(c, http.StatusNotFound, "Not found")
		return
	}
	c.Data(http.StatusOK, a.contentType, a.data)
}

// applyProfile validates and applies name/email; it responds and returns
// false on invalid input.
func applyProfile(c *gin.Context, user *model.User, name, email *string) bool {
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			respondError(c, http.StatusBadRequest, "name should not be empty")
			return false
		}
		user.Name = n
	}
	if email != nil {
		e := strings.TrimSpace(*email)
		if !strings.Contains(e, "@") {
			respondError(c, http.StatusBadRequest, "email must be an email")
			return false
		}
		user.Email = e
	}
	user.UpdatedAt = time.Now()
	return true
}
