package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"atendeai-backend/internal/credentials"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

type Client struct {
	Creds         *credentials.Store
	PhoneNumberID string

	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int
	Backoff     time.Duration // initial retry delay, doubled per attempt
}

func NewClient(creds *credentials.Store, phoneNumberID string, maxAttempts int) *Client {
	return &Client{
		Creds:         creds,
		PhoneNumberID: phoneNumberID,
		BaseURL:       defaultBaseURL,
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
		MaxAttempts:   maxAttempts,
		Backoff:       500 * time.Millisecond,
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	RecipientType    string   `json:"recipient_type,omitempty"`
	Text             *TextObj `json:"text,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// DeliveryReceipt confirms a message was accepted by the provider.
type DeliveryReceipt struct {
	ID                string    `json:"id"`
	To                string    `json:"to"`
	ProviderMessageID string    `json:"provider_message_id"`
	SentAt            time.Time `json:"sent_at"`
}

// SendText delivers a text message through the Graph API. Rate-limit responses
// are retried with exponential backoff up to MaxAttempts; auth failures abort
// immediately since rotating the token is an operator action.
func (c *Client) SendText(to, body string) (*DeliveryReceipt, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text: &TextObj{
			Body: body,
		},
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.PhoneNumberID)

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
		}

		req, err := http.NewRequest("POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.Creds.Current().AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = &DeliveryError{Kind: NetworkFailure, Err: err}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &DeliveryError{Kind: NetworkFailure, Err: err}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &DeliveryError{
				Kind: AuthExpired,
				Err:  fmt.Errorf("API error: %s - %s", resp.Status, string(respBody)),
			}
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &DeliveryError{
				Kind: RateLimited,
				Err:  fmt.Errorf("API error: %s - %s", resp.Status, string(respBody)),
			}
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
		}

		var parsed sendResponse
		providerID := ""
		if err := json.Unmarshal(respBody, &parsed); err == nil && len(parsed.Messages) > 0 {
			providerID = parsed.Messages[0].ID
		}

		return &DeliveryReceipt{
			ID:                uuid.NewString(),
			To:                to,
			ProviderMessageID: providerID,
			SentAt:            time.Now(),
		}, nil
	}

	return nil, lastErr
}
