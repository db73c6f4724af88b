// Package dedup guarantees at-most-once processing of provider deliveries
// within a bounded retention window. WhatsApp may redeliver a webhook event
// with the same message id; the ledger admits each id once per TTL.
package dedup

import (
	"errors"
	"sync"
	"time"

	"atendeai-backend/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when a message id was already admitted within the
// retention window.
var ErrDuplicate = errors.New("dedup: duplicate message id")

type Ledger struct {
	db  *gorm.DB
	ttl time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func NewLedger(db *gorm.DB, ttl time.Duration) *Ledger {
	return &Ledger{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Admit records a message id on first sight and returns nil. A second call
// within the TTL returns ErrDuplicate. Expired records are swept lazily, so
// an id may be admitted again once its window has elapsed.
func (l *Ledger) Admit(messageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Lazy sweep of expired records.
	if err := l.db.Where("seen_at <= ?", now.Add(-l.ttl)).Delete(&models.DedupRecord{}).Error; err != nil {
		return err
	}

	var count int64
	if err := l.db.Model(&models.DedupRecord{}).Where("message_id = ?", messageID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}

	record := models.DedupRecord{MessageID: messageID, SeenAt: now}
	if err := l.db.Create(&record).Error; err != nil {
		return err
	}
	return nil
}
