package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionLoginSuccess       AuditAction = "LOGIN_SUCCESS"
	ActionLoginFailed        AuditAction = "LOGIN_FAILED"
	ActionLoginRateLimited   AuditAction = "LOGIN_RATE_LIMITED"
	ActionTokenRefresh       AuditAction = "TOKEN_REFRESH"
	ActionTokenRefreshFailed AuditAction = "TOKEN_REFRESH_FAILED"
	ActionRefreshTokenReused AuditAction = "REFRESH_TOKEN_REUSED"
	ActionRefreshTokenProbed AuditAction = "REFRESH_TOKEN_PROBED"
	ActionSessionRenewed     AuditAction = "SESSION_RENEWED"
	ActionLogout             AuditAction = "LOGOUT"
	ActionLogoutAll          AuditAction = "LOGOUT_ALL"
)

type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// Append only security event
type AuditEntry struct {
	ID         uuid.UUID
	UserID     *uuid.UUID
	Action     AuditAction
	Severity   AuditSeverity
	Detail     string
	Timestamp  time.Time
	IPAddress  string
	UserAgent  string
	ClientType ClientType
	DeviceID   string
}

// Fill entry network fields from the security context
func (e AuditEntry) WithContext(sc SecurityContext) AuditEntry {
	e.IPAddress = sc.IPAddress
	e.UserAgent = sc.UserAgent
	e.ClientType = sc.ClientType
	e.DeviceID = sc.DeviceID
	return e
}
