package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/David-I7/graphcalculator-sub001/core"
)

// MockRepository is an in-memory implementation of core.Repository for tests
// and local development.
type MockRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*core.User
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		users: make(map[uuid.UUID]*core.User),
	}
}

func (r *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	copied := *user
	return &copied, nil
}

func (r *MockRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}

	return nil, core.ErrNotFound
}

func (r *MockRepository) FindBySubject(ctx context.Context, provider core.Provider, subject string) (*core.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Provider == provider && user.Subject != "" && user.Subject == subject {
			copied := *user
			return &copied, nil
		}
	}

	return nil, core.ErrNotFound
}

func (r *MockRepository) CreateUser(ctx context.Context, user *core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return core.ErrAlreadyExists
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return core.ErrAlreadyExists
		}
		if existing.Provider == user.Provider && user.Subject != "" && existing.Subject == user.Subject {
			return core.ErrAlreadyExists
		}
	}

	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *MockRepository) UpdateCredential(ctx context.Context, userID uuid.UUID, credential []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return core.ErrNotFound
	}

	user.Credential = append([]byte(nil), credential...)
	return nil
}

func (r *MockRepository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return core.ErrNotFound
	}

	user.EmailVerified = true
	return nil
}

func (r *MockRepository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return core.ErrNotFound
	}

	delete(r.users, userID)
	return nil
}
