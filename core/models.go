package core

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies the identity source an account was created through
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	// Future providers can be added here
)

// User represents an account of the calculator application
type User struct {
	ID            uuid.UUID
	Email         string
	EmailVerified bool
	Name          string
	Provider      Provider
	Subject       string // provider-side user ID, empty for local accounts
	Credential    []byte // salt || derived key, empty for OAuth accounts
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
