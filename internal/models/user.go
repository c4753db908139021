package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential record owned by the user store
// The auth core only reads it and stamps the last login
type User struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Email        *string // normalized: trimmed, lower case
	Phone        *string // normalized: digits only
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	LastLoginAt  *time.Time
	LastLoginIP  string
}

// Identifier returns the identifier that matches login method
func (u User) Identifier(method LoginMethod) string {
	switch {
	case method == LoginMethodPhone && u.Phone != nil:
		return *u.Phone
	case u.Email != nil:
		return *u.Email
	case u.Phone != nil:
		return *u.Phone
	default:
		return ""
	}
}
