package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-I7/graphcalculator-sub001/core"
	"github.com/David-I7/graphcalculator-sub001/core/strategies"
)

func setupTestServer(t *testing.T) (*core.Server, *serviceFixture) {
	t.Helper()
	f := setupAuthService(t)
	return core.NewServer(f.service), f
}

func makeRequest(method, path string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var bodyReader *bytes.Reader

	switch v := body.(type) {
	case string:
		bodyReader = bytes.NewReader([]byte(v))
	case nil:
		bodyReader = bytes.NewReader([]byte{})
	default:
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	return req, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandleAuthURL(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/auth/url", map[string]string{"provider": "mock"})
	server.HandleAuthURL(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["url"], "access_type=offline")
	assert.NotEmpty(t, resp["state"])
}

func TestHandleAuthURL_UnknownProvider(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/auth/url", map[string]string{"provider": "yahoo"})
	server.HandleAuthURL(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_provider", decodeBody(t, w)["error"])
}

func TestHandleCompleteAndClaim(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/auth/complete", map[string]string{
		"provider": "mock",
		"code":     strategies.ValidCode1,
	})
	server.HandleCompleteLogin(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	key, _ := decodeBody(t, w)["handoff_key"].(string)
	require.NotEmpty(t, key)

	req, w = makeRequest(http.MethodPost, "/auth/claim", map[string]string{"key": key})
	server.HandleClaimLogin(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, strategies.Tokens1.AccessToken, resp["access_token"])

	// a handoff key is consumable exactly once
	req, w = makeRequest(http.MethodPost, "/auth/claim", map[string]string{"key": key})
	server.HandleClaimLogin(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCompleteLogin_BadCode(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/auth/complete", map[string]string{
		"provider": "mock",
		"code":     "bad_code",
	})
	server.HandleCompleteLogin(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "login_failed", decodeBody(t, w)["error"])
}

func TestHandleSignupConfirmLogin(t *testing.T) {
	server, f := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/signup", map[string]string{
		"email":    "plotter@example.test",
		"name":     "Plotter",
		"password": "grid-paper-42",
	})
	server.HandleSignup(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	code := f.email.confirmations["plotter@example.test"]
	require.NotEmpty(t, code)

	req, w = makeRequest(http.MethodPost, "/confirm", map[string]string{
		"email": "plotter@example.test",
		"code":  code,
	})
	server.HandleConfirmEmail(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req, w = makeRequest(http.MethodPost, "/login", map[string]string{
		"email":    "plotter@example.test",
		"password": "grid-paper-42",
	})
	server.HandleLogin(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plotter@example.test", decodeBody(t, w)["email"])
}

func TestHandleConfirmEmail_WrongCodeReportsAttempts(t *testing.T) {
	server, f := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/signup", map[string]string{
		"email":    "user@example.test",
		"password": "grid-paper-42",
	})
	server.HandleSignup(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	wrong := "000000"
	if f.email.confirmations["user@example.test"] == wrong {
		wrong = "000001"
	}

	req, w = makeRequest(http.MethodPost, "/confirm", map[string]string{
		"email": "user@example.test",
		"code":  wrong,
	})
	server.HandleConfirmEmail(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "code_invalid", resp["error"])
	assert.Equal(t, float64(2), resp["attempts_left"])
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/login", map[string]string{
		"email":    "nobody@example.test",
		"password": "whatever",
	})
	server.HandleLogin(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decodeBody(t, w)["error"])
}

func TestHandleResetPassword_QueryToken(t *testing.T) {
	server, f := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/signup", map[string]string{
		"email":    "reset@example.test",
		"password": "old-password",
	})
	server.HandleSignup(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req, w = makeRequest(http.MethodPost, "/confirm", map[string]string{
		"email": "reset@example.test",
		"code":  f.email.confirmations["reset@example.test"],
	})
	server.HandleConfirmEmail(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req, w = makeRequest(http.MethodPost, "/password-reset", map[string]string{
		"email": "reset@example.test",
	})
	server.HandleRequestPasswordReset(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	token := f.email.resetTokens["reset@example.test"]
	require.NotEmpty(t, token)

	req, w = makeRequest(http.MethodPost, "/password-reset/confirm?token="+token, map[string]string{
		"new_password": "new-password",
	})
	server.HandleResetPassword(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req, w = makeRequest(http.MethodPost, "/login", map[string]string{
		"email":    "reset@example.test",
		"password": "new-password",
	})
	server.HandleLogin(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleResetPassword_MissingToken(t *testing.T) {
	server, _ := setupTestServer(t)

	req, w := makeRequest(http.MethodPost, "/password-reset/confirm", map[string]string{
		"new_password": "new-password",
	})
	server.HandleResetPassword(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleDeleteAccount_BearerToken(t *testing.T) {
	server, f := setupTestServer(t)

	ctx := context.Background()
	user, err := f.service.SignupLocal(ctx, "gone@example.test", "", "grid-paper-42")
	require.NoError(t, err)
	require.NoError(t, f.service.RequestAccountDeletion(ctx, user.ID))

	token := f.email.deleteTokens["gone@example.test"]
	require.NotEmpty(t, token)

	r, w := makeRequest(http.MethodPost, "/account/delete", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	server.HandleDeleteAccount(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = f.repo.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHandleDeleteAccount_BadToken(t *testing.T) {
	server, _ := setupTestServer(t)

	r, w := makeRequest(http.MethodPost, "/account/delete", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	server.HandleDeleteAccount(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	r, w := makeRequest(http.MethodGet, "/health", nil)
	server.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	r, w := makeRequest(http.MethodGet, "/login", nil)
	server.HandleLogin(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandlers_InvalidBody(t *testing.T) {
	server, _ := setupTestServer(t)

	r, w := makeRequest(http.MethodPost, "/login", "{not json")
	server.HandleLogin(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
