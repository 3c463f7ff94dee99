package integration_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type mockUser struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

var mockUsers = map[string]mockUser{
	"valid_code_1": {
		Subject: "oidc_user_1",
		Email:   "user1@example.com",
		Name:    "Test User 1",
		Picture: "https://example.com/avatar1.jpg",
	},
	"valid_code_2": {
		Subject: "oidc_user_2",
		Email:   "user2@example.com",
		Name:    "Test User 2",
		Picture: "https://example.com/avatar2.jpg",
	},
}

// BadSignatureCode makes the token endpoint return an ID token signed with
// the wrong key, for testing that verification fails closed.
const BadSignatureCode = "bad_signature_code"

// MockOIDCServer implements enough of an OpenID Connect provider for the
// Google strategy to run against: discovery, JWKS, token, userinfo and
// revocation endpoints, with RS256-signed ID tokens.
type MockOIDCServer struct {
	server   *httptest.Server
	clientID string

	key    *rsa.PrivateKey
	badKey *rsa.PrivateKey

	mu            sync.Mutex
	refreshTokens map[string]mockUser
	revoked       map[string]bool
}

func NewMockOIDCServer(clientID string) (*MockOIDCServer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	badKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	m := &MockOIDCServer{
		clientID:      clientID,
		key:           key,
		badKey:        badKey,
		refreshTokens: make(map[string]mockUser),
		revoked:       make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", m.handleDiscovery)
	mux.HandleFunc("/jwks", m.handleJWKS)
	mux.HandleFunc("/token", m.handleToken)
	mux.HandleFunc("/userinfo", m.handleUserInfo)
	mux.HandleFunc("/revoke", m.handleRevoke)

	m.server = httptest.NewServer(mux)
	return m, nil
}

func (m *MockOIDCServer) URL() string {
	return m.server.URL
}

func (m *MockOIDCServer) Close() {
	m.server.Close()
}

func (m *MockOIDCServer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"issuer":                                m.server.URL,
		"authorization_endpoint":                m.server.URL + "/auth",
		"token_endpoint":                        m.server.URL + "/token",
		"jwks_uri":                              m.server.URL + "/jwks",
		"userinfo_endpoint":                     m.server.URL + "/userinfo",
		"revocation_endpoint":                   m.server.URL + "/revoke",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (m *MockOIDCServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := m.key.PublicKey

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"keys": []map[string]string{
			{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": "mock-key",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	})
}

func (m *MockOIDCServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.ParseForm()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")

		signingKey := m.key
		if code == BadSignatureCode {
			code = "valid_code_1"
			signingKey = m.badKey
		}

		user, ok := mockUsers[code]
		if !ok {
			tokenError(w)
			return
		}

		idToken, err := m.signIDToken(user, signingKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		refreshToken := "refresh_" + code
		m.mu.Lock()
		m.refreshTokens[refreshToken] = user
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access_" + code,
			"refresh_token": refreshToken,
			"id_token":      idToken,
			"expires_in":    3600,
			"token_type":    "Bearer",
		})

	case "refresh_token":
		refreshToken := r.PostForm.Get("refresh_token")
		m.mu.Lock()
		_, ok := m.refreshTokens[refreshToken]
		revoked := m.revoked[refreshToken]
		m.mu.Unlock()

		if !ok || revoked {
			tokenError(w)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access_refreshed_" + refreshToken,
			"refresh_token": refreshToken,
			"expires_in":    3600,
			"token_type":    "Bearer",
		})

	default:
		tokenError(w)
	}
}

func (m *MockOIDCServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 || auth[:7] != "Bearer " {
		unauthorized(w)
		return
	}
	token := auth[7:]

	for code, user := range mockUsers {
		if token == "access_"+code || token == "access_refreshed_refresh_"+code {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"sub":            user.Subject,
				"email":          user.Email,
				"email_verified": true,
				"name":           user.Name,
				"picture":        user.Picture,
			})
			return
		}
	}

	unauthorized(w)
}

func (m *MockOIDCServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	token := r.PostForm.Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.revoked[token] = true
	m.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (m *MockOIDCServer) signIDToken(user mockUser, key *rsa.PrivateKey) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            m.server.URL,
		"aud":            m.clientID,
		"sub":            user.Subject,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          user.Email,
		"email_verified": true,
		"name":           user.Name,
		"picture":        user.Picture,
	})
	token.Header["kid"] = "mock-key"
	return token.SignedString(key)
}

func tokenError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "invalid_token"})
}
