package handler

import (
	"errors"
	"net/http"
	"time"

	"mooshihub/internal/microservices/http-api/dto"
	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type KeyHandler struct {
	keyService   service.KeyService
	tokenService service.AdminTokenService
}

func NewKeyHandler(keyService service.KeyService, tokenService service.AdminTokenService) *KeyHandler {
	return &KeyHandler{keyService: keyService, tokenService: tokenService}
}

// NewKey issues a fresh API key and returns it as plain text.
func (h *KeyHandler) NewKey(c *gin.Context) {
	key, err := h.keyService.NewKey(c.Request.Context(), c.Query("owner"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create key"})
		return
	}
	c.String(http.StatusOK, key.Key)
}

func (h *KeyHandler) Invalidate(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	err := h.keyService.Invalidate(c.Request.Context(), key)
	if errors.Is(err, service.ErrKeyNotFound) {
		c.String(http.StatusNotFound, "Key not found")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to invalidate key"})
		return
	}
	c.String(http.StatusOK, "API key invalidated")
}

// AdminToken trades the master key for a short-lived admin bearer token.
func (h *KeyHandler) AdminToken(c *gin.Context) {
	if !h.keyService.VerifyMaster(c.Query("master")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrInvalidMasterKey.Error()})
		return
	}

	token, expiresAt, err := h.tokenService.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, dto.AdminTokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
	})
}
