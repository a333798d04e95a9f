package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/TeleVisit/internal/domain/models"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

type auditRepo struct {
	db *sqlx.DB
}

func NewAuditRepo(db *sqlx.DB) repository.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Add(ctx context.Context, entry *models.AuditEntry) error {
	query := `INSERT INTO file_audit (id, user_id, action, object, ip, created_at)
		VALUES (:id, :user_id, :action, :object, :ip, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("add audit entry: %w", err)
	}

	return nil
}

func (r *auditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry

	query := `SELECT id, user_id, action, object, ip, created_at FROM file_audit
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return entries, nil
}
