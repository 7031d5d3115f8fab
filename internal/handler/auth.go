package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vita-chat/internal/model"
	"vita-chat/internal/storage"
	"vita-chat/pkg/logger"
)

const ctxUserKey = "vita.user"

// VerificationSender delivers the email verification token of a new account.
type VerificationSender func(email, token string)

type AuthHandler struct {
	storage    storage.Storage
	autoVerify bool
	sendVerify VerificationSender
}

func NewAuthHandler(store storage.Storage, autoVerify bool, send VerificationSender) *AuthHandler {
	if send == nil {
		send = func(email, token string) {
			logger.WithFields(logger.Fields{"email": email}).Infof("verification link: /auth/verify?token=%s", token)
		}
	}
	return &AuthHandler{storage: store, autoVerify: autoVerify, sendVerify: send}
}

// SeedAdmin creates a verified admin account unless the email is taken.
func (h *AuthHandler) SeedAdmin(email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	err = h.storage.CreateUser(&model.User{
		ID:         uuid.NewString(),
		Name:       "Admin",
		Email:      email,
		Role:       model.RoleAdmin,
		VerifiedAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, hash)
	if errors.Is(err, storage.ErrEmailTaken) {
		return nil
	}
	return err
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondError(c, http.StatusBadRequest, "email must be an email")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if h.autoVerify {
		user.VerifiedAt = &now
	}
	if err := h.storage.CreateUser(user, hash); err != nil {
		respondStorageError(c, err)
		return
	}

	if !h.autoVerify {
		token := uuid.NewString()
		if err := h.storage.SaveToken(storage.TokenVerify, token, user.ID); err != nil {
			respondStorageError(c, err)
			return
		}
		h.sendVerify(user.Email, token)
	}

	c.JSON(http.StatusCreated, model.MessageResponse{Message: "Registration successful, please check your email to verify your account"})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondError(c, http.StatusBadRequest, "token is required")
		return
	}

	userID, err := h.storage.LookupToken(storage.TokenVerify, token)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	user, err := h.storage.GetUser(userID)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	now := time.Now()
	user.VerifiedAt = &now
	user.UpdatedAt = now
	if err := h.storage.UpdateUser(user); err != nil {
		respondStorageError(c, err)
		return
	}
	_ = h.storage.DeleteToken(storage.TokenVerify, token)

	c.JSON(http.StatusOK, model.MessageResponse{Message: "Email verified successfully"})
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user, hash, err := h.storage.FindUserByEmail(req.Email)
	if err != nil || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.VerifiedAt == nil {
		respondError(c, http.StatusUnauthorized, "Please verify your email first")
		return
	}

	token := uuid.NewString()
	if err := h.storage.SaveToken(storage.TokenAccess, token, user.ID); err != nil {
		respondStorageError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SignInResponse{
		AccessToken: token,
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		UserRole:    user.Role,
	})
}

// RequireAuth resolves the bearer token to a user or aborts with 401.
func (h *AuthHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		userID, err := h.storage.LookupToken(storage.TokenAccess, token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		user, err := h.storage.GetUser(userID)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (h *AuthHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != model.RoleAdmin {
			respondError(c, http.StatusForbidden, "Forbidden resource")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return &model.User{}
}
