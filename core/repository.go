package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Repository interface {
	// User operations

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	FindByEmail(ctx context.Context, email string) (*User, error)

	FindBySubject(ctx context.Context, provider Provider, subject string) (*User, error)

	CreateUser(ctx context.Context, user *User) error

	UpdateCredential(ctx context.Context, userID uuid.UUID, credential []byte) error

	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error

	DeleteUser(ctx context.Context, userID uuid.UUID) error
}
