package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"atendeai-backend/internal/credentials"
	"atendeai-backend/internal/dedup"
	"atendeai-backend/internal/router"
	"atendeai-backend/internal/whatsapp"
	"atendeai-backend/internal/ws"
	"atendeai-backend/pkg/models"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Creds  *credentials.Store
	Ledger *dedup.Ledger
	Router *router.Router
	Client *whatsapp.Client
	Hub    *ws.Hub

	// mu guards both ledger admission and the per-contact queues, so queue
	// order always matches admission order.
	mu      sync.Mutex
	pending map[string][]router.InboundEvent
	active  map[string]bool
}

func NewHandler(creds *credentials.Store, ledger *dedup.Ledger, r *router.Router, client *whatsapp.Client, hub *ws.Hub) *Handler {
	return &Handler{
		Creds:   creds,
		Ledger:  ledger,
		Router:  r,
		Client:  client,
		Hub:     hub,
		pending: make(map[string][]router.InboundEvent),
		active:  make(map[string]bool),
	}
}

// VerifyWebhook answers the provider's subscription handshake. The challenge
// is echoed byte-exact; the expected token is never included in a response.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if mode == "subscribe" && token == h.Creds.Current().VerifyToken {
		log.Println("Webhook verified successfully!")
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// HandleEvents ingests a batch of messaging events. The signature is checked
// over the raw body before any JSON parsing. Admitted events are processed
// asynchronously; the provider gets a 200 as soon as ingestion succeeds.
func (h *Handler) HandleEvents(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if secret := h.Creds.Current().AppSecret; secret != "" {
		header := c.GetHeader("X-Hub-Signature-256")
		if !ValidSignature(secret, rawBody, header) {
			log.Println("Rejected webhook payload: signature mismatch")
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		log.Printf("Error binding JSON: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			senderNames := make(map[string]string)
			for _, contact := range value.Contacts {
				senderNames[contact.WaID] = contact.Profile.Name
			}

			for _, message := range value.Messages {
				event := router.InboundEvent{
					MessageID:  message.ID,
					From:       message.From,
					SenderName: senderNames[message.From],
					Timestamp:  parseTimestamp(message.Timestamp),
					Content:    messageContent(message.Type, message.Text.Body, message.Image, message.Video, message.Audio, message.Document),
					Type:       message.Type,
				}

				if err := h.admitAndEnqueue(event); err != nil {
					if errors.Is(err, dedup.ErrDuplicate) {
						log.Printf("Skipping duplicate message %s from %s", event.MessageID, event.From)
					} else {
						log.Printf("Error admitting message %s: %v", event.MessageID, err)
					}
					continue
				}

				log.Printf("Received %s message from %s", event.Type, event.From)
				h.Hub.NotifyInbound(event.From, event.Content, event.Timestamp)
			}

			for _, status := range value.Statuses {
				h.Hub.NotifyStatus(status.ID, status.RecipientId, status.Status)
			}
		}
	}

	c.Status(http.StatusOK)
}

// admitAndEnqueue admits one message through the dedup ledger and appends it
// to the contact's queue while still holding mu, so events land in the queue
// in the same order the ledger admitted them even across overlapping webhook
// calls. The first event for an idle contact starts its consumer.
func (h *Handler) admitAndEnqueue(event router.InboundEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Ledger.Admit(event.MessageID); err != nil {
		return err
	}

	h.pending[event.From] = append(h.pending[event.From], event)
	if !h.active[event.From] {
		h.active[event.From] = true
		go h.drain(event.From)
	}
	return nil
}

// drain works through one contact's queue in FIFO order and exits once the
// queue is empty. Different contacts drain in parallel.
func (h *Handler) drain(waID string) {
	for {
		h.mu.Lock()
		queue := h.pending[waID]
		if len(queue) == 0 {
			delete(h.pending, waID)
			delete(h.active, waID)
			h.mu.Unlock()
			return
		}
		event := queue[0]
		h.pending[waID] = queue[1:]
		h.mu.Unlock()

		h.dispatch(event)
	}
}

// dispatch routes one admitted event and sends the produced reply.
func (h *Handler) dispatch(event router.InboundEvent) {
	reply, err := h.Router.Route(event)
	if err != nil {
		log.Printf("Error routing message %s: %v", event.MessageID, err)
		return
	}

	receipt, err := h.Client.SendText(event.From, reply)
	if err != nil {
		log.Printf("Error delivering reply to %s: %v", event.From, err)
		return
	}
	h.Hub.NotifyReceipt(receipt)
}

func messageContent(msgType, textBody string, image, video, audio, document *models.MediaMessage) string {
	switch msgType {
	case "text":
		return textBody
	case "image":
		if image != nil {
			content := "[image]:" + image.ID
			if image.Caption != "" {
				content += ":" + image.Caption
			}
			return content
		}
	case "video":
		if video != nil {
			content := "[video]:" + video.ID
			if video.Caption != "" {
				content += ":" + video.Caption
			}
			return content
		}
	case "audio":
		if audio != nil {
			return "[audio]:" + audio.ID
		}
	case "document":
		if document != nil {
			content := "[document]:" + document.ID
			if document.Filename != "" {
				content += ":" + document.Filename
			}
			return content
		}
	}
	return "[" + msgType + "]"
}

func parseTimestamp(raw string) time.Time {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	return time.Now()
}
