package domain

import "fmt"

// Role определяет кто запрашивает допуск, а кто его выдаёт
type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClinician, RolePatient:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
