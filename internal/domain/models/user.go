package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/domain"
)

type User struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Username    string      `json:"username" db:"username"`
	Password    string      `json:"-" db:"password"`
	Role        domain.Role `json:"role" db:"role"`
	DisplayName string      `json:"display_name" db:"display_name"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

func NewUser(username string, role domain.Role, displayName string) *User {
	if displayName == "" {
		displayName = username
	}

	return &User{
		ID:          uuid.New(),
		Username:    username,
		Role:        role,
		DisplayName: displayName,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}
