package models

import "time"

type ClientType string

const (
	ClientWeb    ClientType = "web"
	ClientMobile ClientType = "mobile"
)

func (c ClientType) Valid() bool {
	return c == ClientWeb || c == ClientMobile
}

type LoginMethod string

const (
	LoginMethodEmail LoginMethod = "email"
	LoginMethodPhone LoginMethod = "phone"
)

func (m LoginMethod) Valid() bool {
	return m == LoginMethodEmail || m == LoginMethodPhone
}

// Request scoped metadata attached to every token issuing decision and audit entry.
// Never persisted as is.
type SecurityContext struct {
	ClientType  ClientType
	DeviceID    string
	LoginMethod LoginMethod
	IPAddress   string
	UserAgent   string
	IssuedAt    time.Time
}
