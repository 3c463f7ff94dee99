package integration_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type CompleteLoginResponse struct {
	HandoffKey string `json:"handoff_key"`
}

type ClaimLoginResponse struct {
	Provider     string `json:"provider"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Identity     struct {
		Subject       string `json:"subject"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	} `json:"identity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func postJSON(baseURL, path string, body interface{}) (*http.Response, error) {
	jsonBody, _ := json.Marshal(body)

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Post(baseURL+path, "application/json", bytes.NewReader(jsonBody))
}

func decodeResponse(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

func countUsers(dbPath string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func cleanDatabase(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("DELETE FROM users")
	return err
}

// emailRecorder captures outgoing messages instead of delivering them.
type emailRecorder struct {
	mu            sync.Mutex
	confirmations map[string]string
	resetTokens   map[string]string
	deleteTokens  map[string]string
}

func newEmailRecorder() *emailRecorder {
	return &emailRecorder{
		confirmations: make(map[string]string),
		resetTokens:   make(map[string]string),
		deleteTokens:  make(map[string]string),
	}
}

func (s *emailRecorder) SendConfirmationCode(ctx context.Context, email string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[email] = code
	return nil
}

func (s *emailRecorder) SendPasswordResetLink(ctx context.Context, email string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[email] = token
	return nil
}

func (s *emailRecorder) SendAccountDeletionLink(ctx context.Context, email string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteTokens[email] = token
	return nil
}

func (s *emailRecorder) confirmationFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmations[email]
}

func (s *emailRecorder) resetTokenFor(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetTokens[email]
}
