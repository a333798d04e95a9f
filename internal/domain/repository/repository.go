// Package repository - интерфейсы хранилищ relay. Реализации в infra/adapters.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/domain/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuditRepository - журнал действий с файлами
type AuditRepository interface {
	Add(ctx context.Context, entry *models.AuditEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

// PresenceRepository - кто сейчас в комнате. Может жить вне процесса relay.
type PresenceRepository interface {
	Join(ctx context.Context, room, peerID string) error
	Leave(ctx context.Context, room, peerID string) error
	Members(ctx context.Context, room string) ([]string, error)
}
