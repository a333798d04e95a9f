package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/domain/models"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
)

// userRepository - для запуска relay без Postgres
type userRepository struct {
	byID map[uuid.UUID]models.User
	mu   sync.RWMutex
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{byID: make(map[uuid.UUID]models.User)}
}

func (r *userRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username == user.Username {
			return fmt.Errorf("create user %s: %w", user.Username, repository.ErrAlreadyExists)
		}
	}

	r.byID[user.ID] = *user

	return nil
}

func (r *userRepository) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user by id: %w", repository.ErrNotFound)
	}

	return &u, nil
}

func (r *userRepository) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.Username == username {
			return &u, nil
		}
	}

	return nil, fmt.Errorf("get user by username: %w", repository.ErrNotFound)
}
