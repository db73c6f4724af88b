package main

import (
	"log"
	"time"

	"atendeai-backend/internal/api"
	"atendeai-backend/internal/booking"
	"atendeai-backend/internal/config"
	"atendeai-backend/internal/credentials"
	"atendeai-backend/internal/database"
	"atendeai-backend/internal/dedup"
	"atendeai-backend/internal/memory"
	"atendeai-backend/internal/router"
	"atendeai-backend/internal/webhook"
	"atendeai-backend/internal/whatsapp"
	"atendeai-backend/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	db := database.InitGorm(cfg)

	credStore, err := credentials.NewStore(db, credentials.Credential{
		VerifyToken: cfg.VerifyToken,
		AccessToken: cfg.WhatsAppToken,
		AppSecret:   cfg.AppSecret,
	})
	if err != nil {
		log.Fatalf("Failed to initialize credentials: %v", err)
	}
	if credStore.Current().AppSecret == "" {
		log.Println("Warning: APP_SECRET not set, webhook payload signatures will not be verified")
	}

	ledger := dedup.NewLedger(db, time.Duration(cfg.DedupTTLSeconds)*time.Second)
	store := memory.NewStore(db, cfg.MemoryCapPerContact)
	client := whatsapp.NewClient(credStore, cfg.PhoneNumberID, cfg.SendMaxAttempts)
	bookingSvc := booking.NewService(db)
	msgRouter := router.New(store, bookingSvc, router.DefaultBookingSlots(),
		cfg.BookingMaxRetries, time.Duration(cfg.BookingIdleTimeoutSeconds)*time.Second)

	hub := ws.NewHub()
	go hub.Run()

	webhookHandler := webhook.NewHandler(credStore, ledger, msgRouter, client, hub)
	messageHandler := api.NewMessageHandler(client, store, hub)
	credentialHandler := api.NewCredentialHandler(credStore)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleEvents)

	// Operator API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/messages", messageHandler.GetMessages)
		apiGroup.POST("/messages/send", messageHandler.SendMessage)
		apiGroup.POST("/credentials/rotate", credentialHandler.Rotate)
	}

	// Dashboard event stream
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
