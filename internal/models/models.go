package models

import (
	"time"
)

// Contact represents a WhatsApp contact, created lazily on first inbound message
type Contact struct {
	WaID      string    `gorm:"primaryKey" json:"wa_id"` // WhatsApp ID (phone number)
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// MemoryEntry is one exchanged message in a contact's conversation memory
type MemoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"index;not null" json:"wa_id"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role"` // user, assistant
	Content   string    `gorm:"type:text" json:"content"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MemoryEntry) TableName() string {
	return "memory_entries"
}

// SessionState tracks the active flow for a contact
type SessionState struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"wa_id"`
	Flow      string    `gorm:"type:varchar(50);default:'none'" json:"flow"` // none, booking, completing
	Slots     string    `gorm:"type:text" json:"slots"`                      // JSON slot values
	Retries   int       `gorm:"default:0" json:"retries"`
	StartedAt time.Time `gorm:"autoCreateTime" json:"started_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SessionState) TableName() string {
	return "session_states"
}

// DedupRecord marks a provider message id as already admitted within the TTL window
type DedupRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"message_id"`
	SeenAt    time.Time `gorm:"not null;index" json:"seen_at"`
}

func (DedupRecord) TableName() string {
	return "dedup_records"
}

// Appointment is a booked slot recorded by the default booking collaborator
type Appointment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WaID      string    `gorm:"index;not null" json:"wa_id"`
	Date      string    `gorm:"type:varchar(20);not null" json:"date"`
	Time      string    `gorm:"type:varchar(10);not null" json:"time"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// SystemSetting stores key/value configuration synced between env and DB
type SystemSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
