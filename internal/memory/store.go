// Package memory owns per-contact conversation history and session state.
package memory

import (
	"errors"
	"time"

	"atendeai-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Flow values for SessionState.
const (
	FlowNone       = "none"
	FlowBooking    = "booking"
	FlowCompleting = "completing"
)

type Store struct {
	db  *gorm.DB
	cap int // max stored entries per contact, 0 disables eviction
}

func NewStore(db *gorm.DB, capPerContact int) *Store {
	return &Store{db: db, cap: capPerContact}
}

// EnsureContact lazily creates the contact record on first inbound message.
// An existing contact is left untouched.
func (s *Store) EnsureContact(waID, name string) error {
	contact := models.Contact{WaID: waID, Name: name}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&contact).Error
}

// Append adds one entry to the contact's memory, evicting the oldest entries
// when the configured cap is exceeded. Ordering of the surviving entries is
// preserved.
func (s *Store) Append(waID, role, content string, timestamp time.Time) error {
	entry := models.MemoryEntry{
		WaID:      waID,
		Role:      role,
		Content:   content,
		Timestamp: timestamp,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return err
	}
	if s.cap <= 0 {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.MemoryEntry{}).Where("wa_id = ?", waID).Count(&count).Error; err != nil {
		return err
	}
	excess := int(count) - s.cap
	if excess <= 0 {
		return nil
	}

	var ids []uint
	err := s.db.Model(&models.MemoryEntry{}).
		Where("wa_id = ?", waID).
		Order("id asc").
		Limit(excess).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	return s.db.Delete(&models.MemoryEntry{}, ids).Error
}

// History returns a fresh snapshot of the most recent limit entries for a
// contact, oldest first (newest last). limit <= 0 returns everything stored.
func (s *Store) History(waID string, limit int) ([]models.MemoryEntry, error) {
	query := s.db.Where("wa_id = ?", waID).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.MemoryEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// GetSession returns the contact's session state, creating a fresh flow=none
// state if none exists. When two callers race to create the row, the loser's
// insert hits the unique index on wa_id and falls back to reading the
// winner's row.
func (s *Store) GetSession(waID string) (models.SessionState, error) {
	var session models.SessionState
	err := s.db.Where("wa_id = ?", waID).First(&session).Error
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return session, err
	}

	session = models.SessionState{WaID: waID, Flow: FlowNone, Slots: "{}"}
	if createErr := s.db.Create(&session).Error; createErr != nil {
		var existing models.SessionState
		if fetchErr := s.db.Where("wa_id = ?", waID).First(&existing).Error; fetchErr == nil {
			return existing, nil
		}
		return session, createErr
	}
	return session, nil
}

// SetSession replaces the contact's session state. Last writer wins; mutation
// for one contact is serialized through the router.
func (s *Store) SetSession(session models.SessionState) error {
	return s.db.Save(&session).Error
}
