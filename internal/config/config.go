package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	VerifyToken   string
	WhatsAppToken string
	AppSecret     string
	PhoneNumberID string

	DBPath      string
	DatabaseURL string

	DedupTTLSeconds           int
	MemoryCapPerContact       int
	BookingMaxRetries         int
	BookingIdleTimeoutSeconds int

	SendMaxAttempts int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		VerifyToken:   getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken: getEnv("WHATSAPP_TOKEN", ""),
		AppSecret:     getEnv("APP_SECRET", ""),
		PhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),

		DBPath:      getEnv("DB_PATH", "./atendeai.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		DedupTTLSeconds:           getEnvInt("DEDUP_TTL_SECONDS", 300),
		MemoryCapPerContact:       getEnvInt("MEMORY_CAP_PER_CONTACT", 200),
		BookingMaxRetries:         getEnvInt("BOOKING_MAX_RETRIES", 3),
		BookingIdleTimeoutSeconds: getEnvInt("BOOKING_IDLE_TIMEOUT_SECONDS", 900),

		SendMaxAttempts: getEnvInt("SEND_MAX_ATTEMPTS", 4),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}
