package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Deferred actions authorized by signed tokens.
const (
	ActionPasswordReset   = "password_reset"
	ActionAccountDeletion = "account_deletion"
)

// ActionClaims is the verified content of a signed action token.
type ActionClaims struct {
	Action string            `json:"action"`
	Data   map[string]string `json:"data,omitempty"`
	jwt.RegisteredClaims
}

// ActionTokenService issues and verifies compact signed tokens authorizing
// one deferred action (password reset, account deletion). No state is kept
// server-side; revocation is only possible by rotating the secret.
type ActionTokenService struct {
	secret     []byte
	defaultTTL time.Duration
}

func NewActionTokenService(secret string, defaultTTL time.Duration) *ActionTokenService {
	return &ActionTokenService{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
	}
}

// Issue signs a token carrying the action and payload, expiring after ttl
// (the service default when ttl <= 0). The result is URL-query safe.
func (s *ActionTokenService) Issue(action string, data map[string]string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := time.Now()
	claims := &ActionClaims{
		Action: action,
		Data:   data,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

// Verify validates the signature before trusting any claim, then the expiry.
// It fails closed on any tamper, expiry or signature mismatch.
func (s *ActionTokenService) Verify(tokenString string) (*ActionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActionClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyFromQuery verifies a token embedded in the "token" query parameter,
// the form used by emailed action links.
func (s *ActionTokenService) VerifyFromQuery(r *http.Request) (*ActionClaims, error) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	return s.Verify(tokenString)
}

// VerifyFromHeader verifies a token passed as a bearer credential in the
// Authorization header.
func (s *ActionTokenService) VerifyFromHeader(r *http.Request) (*ActionClaims, error) {
	tokenString, err := extractBearerToken(r)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.Verify(tokenString)
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}
