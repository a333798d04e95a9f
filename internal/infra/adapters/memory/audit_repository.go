package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/domain/models"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

type auditRepository struct {
	entries []models.AuditEntry
	mu      sync.RWMutex
}

func NewAuditRepository() repository.AuditRepository {
	return &auditRepository{}
}

func (r *auditRepository) Add(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, *entry)

	return nil
}

// ListByUser - новые записи первыми
func (r *auditRepository) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.AuditEntry

	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}

	return out, nil
}
