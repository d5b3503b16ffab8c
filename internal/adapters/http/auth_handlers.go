package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/syncpad/syncpad/internal/auth"
	"github.com/syncpad/syncpad/internal/domain"
	"github.com/syncpad/syncpad/internal/store"
)

type AuthHandlers struct {
	Store store.Store
	Auth  *auth.Manager
}

type credentialsPayload struct {
	Username string `json:"username" binding:"required,max=36"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register creates an account and returns a token so the client can
// connect straight away.
func (h *AuthHandlers) Register(c *gin.Context) {
	var p credentialsPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid credentials payload"})
		return
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	user, err := domain.NewUser(p.Username, hash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
			return
		}
		log.Error().Str("module", "adapters.http").Err(err).Msg("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	h.issue(c, user)
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var p credentialsPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid credentials payload"})
		return
	}

	user, err := h.Store.UserByUsername(c.Request.Context(), p.Username)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, p.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid username or password"})
		return
	}

	h.issue(c, user)
}

func (h *AuthHandlers) issue(c *gin.Context, user *domain.User) {
	token, err := h.Auth.Issue(user.ID, user.Username)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username},
	})
}
