package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrCodeExpired covers missing, expired and exhausted codes alike so a
	// caller cannot distinguish "never issued" from "used up".
	ErrCodeExpired = errors.New("code expired or invalid")

	// ErrCodeAlreadyIssued is returned when an unexpired, un-exhausted code
	// already exists for the key. Issuing over it would reset the attempt
	// counter.
	ErrCodeAlreadyIssued = errors.New("an active code already exists for this key")
)

// CodeInvalidError reports a failed guess against a live code.
// AttemptsLeft is -1 when the attempt ceiling is disabled.
type CodeInvalidError struct {
	AttemptsLeft int
}

func (e *CodeInvalidError) Error() string {
	if e.AttemptsLeft < 0 {
		return "code invalid"
	}
	return fmt.Sprintf("code invalid, %d attempts left", e.AttemptsLeft)
}

const (
	weakCodeDigits   = 6
	weakCodeMaxTries = 3

	strongCodeBytes = 32
)

// CodeEntry is a live one-time code stored under an issuance key.
type CodeEntry struct {
	Code         string
	AttemptsLeft int // -1 when the ceiling is disabled
	Payload      string
	ExpiresAt    time.Time
}

// CodeService issues and validates single-use codes with a bounded TTL.
//
// The weak variant produces fixed-width numeric codes meant to be typed by a
// human from an email, so it enforces a strict attempt ceiling against
// guessing over the small keyspace. The strong variant produces high-entropy
// opaque tokens meant to be embedded in links; entropy alone resists
// guessing, so the ceiling is disabled.
type CodeService struct {
	mu       sync.Mutex
	cache    *Cache[CodeEntry]
	ttl      time.Duration
	maxTries int
	generate func() (string, error)
}

// NewWeakCodeService creates a service issuing 6-digit codes with 3 allowed
// attempts. The cache instance is owned by the caller.
func NewWeakCodeService(cache *Cache[CodeEntry], ttl time.Duration) *CodeService {
	return &CodeService{
		cache:    cache,
		ttl:      ttl,
		maxTries: weakCodeMaxTries,
		generate: generateNumericCode,
	}
}

// NewStrongCodeService creates a service issuing high-entropy opaque codes
// with no attempt ceiling. The cache instance is owned by the caller.
func NewStrongCodeService(cache *Cache[CodeEntry], ttl time.Duration) *CodeService {
	return &CodeService{
		cache:    cache,
		ttl:      ttl,
		maxTries: 0,
		generate: generateOpaqueCode,
	}
}

// Issue generates a fresh code and stores it under key, carrying an optional
// payload returned on successful validation. One live code per key: issuing
// while an unexpired, un-exhausted code exists fails with
// ErrCodeAlreadyIssued.
func (s *CodeService) Issue(key string, payload string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := CodeEntry{
		Code:         code,
		AttemptsLeft: s.attempts(),
		Payload:      payload,
		ExpiresAt:    time.Now().Add(s.ttl),
	}
	if err := s.cache.Add(key, entry, s.ttl); err != nil {
		return "", ErrCodeAlreadyIssued
	}

	return code, nil
}

// Validate checks a guess against the code stored under key.
//
// A missing or expired entry fails with ErrCodeExpired. A wrong guess
// decrements the attempt counter and fails with CodeInvalidError; the guess
// that exhausts the counter removes the entry, so even the correct code
// fails with ErrCodeExpired afterwards. A correct guess removes the entry
// and returns the payload, so a code validates at most once.
func (s *CodeService) Validate(key string, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache.Get(key)
	if !ok {
		return "", ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) == 1 {
		s.cache.Remove(key)
		return entry.Payload, nil
	}

	if entry.AttemptsLeft < 0 {
		return "", &CodeInvalidError{AttemptsLeft: -1}
	}

	entry.AttemptsLeft--
	if entry.AttemptsLeft <= 0 {
		s.cache.Remove(key)
		return "", ErrCodeExpired
	}

	s.cache.Set(key, entry, time.Until(entry.ExpiresAt))
	return "", &CodeInvalidError{AttemptsLeft: entry.AttemptsLeft}
}

func (s *CodeService) attempts() int {
	if s.maxTries <= 0 {
		return -1
	}
	return s.maxTries
}

func generateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", weakCodeDigits, n), nil
}

func generateOpaqueCode() (string, error) {
	buf := make([]byte, strongCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
