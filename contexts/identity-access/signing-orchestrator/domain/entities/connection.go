package entities

import "time"

// UserConnection binds an internal account to one external strong identity
// per method. One external identity must never bind to two accounts, and one
// account must not bind to two identities of the same method.
type UserConnection struct {
	ConnectionID string
	UserID       string
	Method       SigningMethod
	ExternalID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
