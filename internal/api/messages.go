package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"atendeai-backend/internal/memory"
	"atendeai-backend/internal/models"
	"atendeai-backend/internal/whatsapp"
	"atendeai-backend/internal/ws"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	Client *whatsapp.Client
	Store  *memory.Store
	Hub    *ws.Hub
}

func NewMessageHandler(client *whatsapp.Client, store *memory.Store, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{Client: client, Store: store, Hub: hub}
}

type SendRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SendMessage is the operator-triggered outbound path. The sent message is
// appended to the contact's memory like any router-produced reply.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.Client.SendText(req.To, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if derr, ok := err.(*whatsapp.DeliveryError); ok && derr.Kind == whatsapp.AuthExpired {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}

	if err := h.Store.EnsureContact(req.To, ""); err != nil {
		log.Printf("Error saving contact %s: %v", req.To, err)
	}
	if err := h.Store.Append(req.To, memory.RoleAssistant, req.Message, time.Now()); err != nil {
		log.Printf("Error recording outbound message for %s: %v", req.To, err)
	}
	h.Hub.NotifyReceipt(receipt)

	c.JSON(http.StatusOK, receipt)
}

// GetMessages returns the most recent conversation history for a contact.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	waID := c.Query("contact")
	if waID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact query parameter is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.Store.History(waID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []models.MemoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
