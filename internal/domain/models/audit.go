package models

import (
	"time"

	"github.com/google/uuid"
)

const ActionShareFile = "SHARE_FILE"

// AuditEntry - запись аудита действий с файлами
type AuditEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Object    string    `json:"object" db:"object"`
	IP        string    `json:"ip" db:"ip"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewAuditEntry(userID uuid.UUID, action, object, ip string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Object:    object,
		IP:        ip,
		CreatedAt: time.Now(),
	}
}
