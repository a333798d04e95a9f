package dto

import (
	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/domain"
)

type RegisterRequest struct {
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type GetMeResponse struct {
	ID          uuid.UUID   `json:"id"`
	Username    string      `json:"username"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"display_name"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
