package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenState string

const (
	TokenStateActive  TokenState = "active"
	TokenStateRotated TokenState = "rotated"
	TokenStateRevoked TokenState = "revoked"
	TokenStateExpired TokenState = "expired"
)

type RefreshToken struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	DeviceID    string
	LoginMethod LoginMethod
	ClientType  ClientType
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedAt   *time.Time // nil until a successor is issued
	RevokedAt   *time.Time // nil until revoked
	ReplacedBy  *uuid.UUID // successor token id, set on rotation
}

// State of the token at the given moment
// Expiry wins over any other state: an expired token can never be used again
func (t RefreshToken) State(now time.Time) TokenState {
	switch {
	case !now.Before(t.ExpiresAt):
		return TokenStateExpired
	case t.RevokedAt != nil:
		return TokenStateRevoked
	case t.RotatedAt != nil:
		return TokenStateRotated
	default:
		return TokenStateActive
	}
}

// Terminal reports whether the token was already consumed or revoked
func (t RefreshToken) Terminal() bool {
	return t.RotatedAt != nil || t.RevokedAt != nil
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued to mobile clients
type TokenPair struct {
	Access    IssuedToken
	Refresh   IssuedToken
	RefreshID uuid.UUID
}

// Server side session granted to browsers
// ID is the secret carried by the cookie; stores keep only its hash
type WebSession struct {
	ID          string
	UserID      uuid.UUID
	DeviceID    string
	LoginMethod LoginMethod
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
