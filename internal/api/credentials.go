package api

import (
	"errors"
	"net/http"

	"atendeai-backend/internal/credentials"

	"github.com/gin-gonic/gin"
)

type CredentialHandler struct {
	Store *credentials.Store
}

func NewCredentialHandler(store *credentials.Store) *CredentialHandler {
	return &CredentialHandler{Store: store}
}

type RotateRequest struct {
	VerifyToken string `json:"verify_token" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
	AppSecret   string `json:"app_secret"`
}

// Rotate installs a new credential pair. A rejected rotation leaves the
// current credential untouched. Token values are never echoed back.
func (h *CredentialHandler) Rotate(c *gin.Context) {
	var req RotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Store.Rotate(credentials.Credential{
		VerifyToken: req.VerifyToken,
		AccessToken: req.AccessToken,
		AppSecret:   req.AppSecret,
	})
	if err != nil {
		var verr *credentials.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Credentials rotated"})
}
