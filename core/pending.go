package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PendingLogin bridges the provider callback and the browser popup pickup.
// The ID token never leaves the server; only the verified identity derived
// from it does.
type PendingLogin struct {
	Tokens   TokenSet
	Identity Identity
}

// PendingAuthStore holds completed OAuth logins under single-use random
// handoff keys for the short window between the server-to-server callback
// and the client-side pickup.
type PendingAuthStore struct {
	cache *Cache[PendingLogin]
	ttl   time.Duration
}

// NewPendingAuthStore wraps a caller-owned cache. The TTL only needs to
// cover a popup-window handshake, so it is short (about a minute).
func NewPendingAuthStore(cache *Cache[PendingLogin], ttl time.Duration) *PendingAuthStore {
	return &PendingAuthStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Put stores the login under a fresh random key and returns the key. The ID
// token is stripped before storage. Overwriting an existing unexpired key is
// refused, so a key collision cannot substitute another flow's entry.
func (s *PendingAuthStore) Put(tokens TokenSet, identity Identity) (string, error) {
	key := uuid.NewString()

	tokens.IDToken = ""
	entry := PendingLogin{
		Tokens:   tokens,
		Identity: identity,
	}

	if err := s.cache.Add(key, entry, s.ttl); err != nil {
		return "", fmt.Errorf("handoff key collision: %w", err)
	}

	return key, nil
}

// Claim returns and deletes the entry for a handoff key. A key is
// consumable exactly once; expired or already-claimed keys report absent.
func (s *PendingAuthStore) Claim(key string) (*PendingLogin, bool) {
	entry, ok := s.cache.Pop(key)
	if !ok {
		return nil, false
	}
	return &entry, true
}
