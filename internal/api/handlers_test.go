package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atendeai-backend/internal/credentials"
	"atendeai-backend/internal/database"
	"atendeai-backend/internal/memory"
	"atendeai-backend/internal/models"
	"atendeai-backend/internal/whatsapp"
	"atendeai-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestEngine(t *testing.T, graphStatus int) (*gin.Engine, *memory.Store, *credentials.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	creds, err := credentials.NewStore(db, credentials.Credential{
		VerifyToken: "verify",
		AccessToken: "access",
	})
	require.NoError(t, err)

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if graphStatus != http.StatusOK {
			w.WriteHeader(graphStatus)
			return
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT"}]}`))
	}))
	t.Cleanup(graph.Close)

	client := whatsapp.NewClient(creds, "1234567890", 1)
	client.BaseURL = graph.URL
	client.Backoff = time.Millisecond

	store := memory.NewStore(db, 50)
	hub := ws.NewHub()
	go hub.Run()

	engine := gin.New()
	messageHandler := NewMessageHandler(client, store, hub)
	credentialHandler := NewCredentialHandler(creds)
	engine.GET("/api/messages", messageHandler.GetMessages)
	engine.POST("/api/messages/send", messageHandler.SendMessage)
	engine.POST("/api/credentials/rotate", credentialHandler.Rotate)

	return engine, store, creds
}

func postJSON(engine *gin.Engine, target string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestSendMessageReturnsReceiptAndRecordsMemory(t *testing.T) {
	engine, store, _ := newTestEngine(t, http.StatusOK)

	w := postJSON(engine, "/api/messages/send", gin.H{"to": "5511999990000", "message": "Reminder: tomorrow at 10"})
	require.Equal(t, http.StatusOK, w.Code)

	var receipt whatsapp.DeliveryReceipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	require.Equal(t, "5511999990000", receipt.To)
	require.Equal(t, "wamid.OUT", receipt.ProviderMessageID)

	entries, err := store.History("5511999990000", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, memory.RoleAssistant, entries[0].Role)
	require.Equal(t, "Reminder: tomorrow at 10", entries[0].Content)
}

func TestSendMessageValidatesInput(t *testing.T) {
	engine, _, _ := newTestEngine(t, http.StatusOK)

	w := postJSON(engine, "/api/messages/send", gin.H{"to": "5511999990000"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageSurfacesAuthExpired(t *testing.T) {
	engine, _, _ := newTestEngine(t, http.StatusUnauthorized)

	w := postJSON(engine, "/api/messages/send", gin.H{"to": "5511999990000", "message": "hi"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMessagesRequiresContact(t *testing.T) {
	engine, _, _ := newTestEngine(t, http.StatusOK)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/messages", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessagesReturnsHistory(t *testing.T) {
	engine, store, _ := newTestEngine(t, http.StatusOK)
	require.NoError(t, store.Append("5511999990000", memory.RoleUser, "oi", time.Now()))
	require.NoError(t, store.Append("5511999990000", memory.RoleAssistant, "hello!", time.Now()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/messages?contact=5511999990000&limit=10", nil)
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []models.MemoryEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "oi", entries[0].Content)
}

func TestRotateEndpoint(t *testing.T) {
	engine, _, creds := newTestEngine(t, http.StatusOK)

	w := postJSON(engine, "/api/credentials/rotate", gin.H{
		"verify_token": "new-verify",
		"access_token": "new-access",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "new-verify", creds.Current().VerifyToken)
}

func TestRotateEndpointRejectsInvalid(t *testing.T) {
	engine, _, creds := newTestEngine(t, http.StatusOK)
	before := creds.Current()

	w := postJSON(engine, "/api/credentials/rotate", gin.H{
		"verify_token": "has space",
		"access_token": "new-access",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, before.VerifyToken, creds.Current().VerifyToken)
}
