// Package credentials owns the single active credential pair used for the
// webhook handshake and outbound Graph API calls. Rotation is an explicit
// operator action; readers always get a complete snapshot, never a half-updated
// pair.
package credentials

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	"atendeai-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	keyVerifyToken = "VERIFY_TOKEN"
	keyAccessToken = "WHATSAPP_TOKEN"
	keyAppSecret   = "APP_SECRET"
)

// Credential is the active token pair plus the app secret used for payload
// signature verification.
type Credential struct {
	VerifyToken string
	AccessToken string
	AppSecret   string
	UpdatedAt   time.Time
}

// ValidationError reports a rejected rotation. It never carries token values.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "credentials: " + e.Reason
}

// Store holds the current credential and optionally persists it to the
// system_settings table so restarts pick up a rotated token.
type Store struct {
	mu      sync.RWMutex
	current Credential
	db      *gorm.DB
}

// NewStore seeds the store from the initial credential, then overlays any
// values already persisted in the database (a previously rotated token wins
// over stale env configuration).
func NewStore(db *gorm.DB, initial Credential) (*Store, error) {
	if err := validate(initial); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	initial.UpdatedAt = time.Now()

	if db != nil {
		overlay := map[string]*string{
			keyVerifyToken: &initial.VerifyToken,
			keyAccessToken: &initial.AccessToken,
			keyAppSecret:   &initial.AppSecret,
		}
		for key, dst := range overlay {
			var setting models.SystemSetting
			if err := db.Where("key = ?", key).First(&setting).Error; err == nil {
				// A present key always wins, even with an empty value: rotating
				// the app secret to "" is an intentional choice that must not
				// be undone by stale env configuration on restart.
				*dst = setting.Value
			}
		}
		if err := validate(initial); err != nil {
			return nil, fmt.Errorf("credentials: persisted values invalid: %w", err)
		}
		if err := s.persist(initial); err != nil {
			return nil, fmt.Errorf("credentials: persist initial: %w", err)
		}
	}

	s.current = initial
	return s, nil
}

// Current returns a consistent snapshot of the active credential.
func (s *Store) Current() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Rotate validates and atomically installs a new credential. A failed
// validation or persistence error leaves the existing credential untouched.
func (s *Store) Rotate(next Credential) error {
	if err := validate(next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.persist(next); err != nil {
			return fmt.Errorf("credentials: persist rotation: %w", err)
		}
	}
	s.current = next
	log.Println("Credentials rotated")
	return nil
}

func (s *Store) persist(c Credential) error {
	settings := []models.SystemSetting{
		{Key: keyVerifyToken, Value: c.VerifyToken},
		{Key: keyAccessToken, Value: c.AccessToken},
		{Key: keyAppSecret, Value: c.AppSecret},
	}
	for _, setting := range settings {
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&setting).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func validate(c Credential) error {
	if strings.TrimSpace(c.VerifyToken) == "" {
		return &ValidationError{Reason: "verify token must not be empty"}
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return &ValidationError{Reason: "access token must not be empty"}
	}
	for name, v := range map[string]string{"verify token": c.VerifyToken, "access token": c.AccessToken, "app secret": c.AppSecret} {
		for _, r := range v {
			if unicode.IsSpace(r) || unicode.IsControl(r) {
				return &ValidationError{Reason: name + " contains whitespace or control characters"}
			}
		}
	}
	return nil
}
