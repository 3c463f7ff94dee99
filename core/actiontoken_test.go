package core_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-I7/graphcalculator-sub001/core"
)

const testSecret = "test-secret-key-for-testing-purposes-only"

func newTokenService() *core.ActionTokenService {
	return core.NewActionTokenService(testSecret, 15*time.Minute)
}

func TestActionToken_IssueAndVerify(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionPasswordReset, map[string]string{"user_id": "u-1"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, core.ActionPasswordReset, claims.Action)
	assert.Equal(t, "u-1", claims.Data["user_id"])
}

func TestActionToken_TamperedPayload(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionPasswordReset, map[string]string{"user_id": "u-1"}, 0)
	require.NoError(t, err)

	// flip a byte in the payload segment
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = tokens.Verify(tampered)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestActionToken_WrongSecret(t *testing.T) {
	tokens := newTokenService()
	other := core.NewActionTokenService("a-different-secret", 15*time.Minute)

	token, err := other.Issue(core.ActionPasswordReset, nil, 0)
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestActionToken_Expired(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionAccountDeletion, nil, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, core.ErrExpiredToken)
}

func TestActionToken_ExpiredAndTampered(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionAccountDeletion, nil, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	// a broken signature outranks expiry: the claims are untrusted, so the
	// error must not leak anything read from them
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = tokens.Verify(tampered)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
	assert.NotErrorIs(t, err, core.ErrExpiredToken)
}

func TestActionToken_Garbage(t *testing.T) {
	tokens := newTokenService()

	_, err := tokens.Verify("not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestActionToken_FromQuery(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionPasswordReset, map[string]string{"user_id": "u-1"}, 0)
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/reset?token="+token, nil)
	claims, err := tokens.VerifyFromQuery(r)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Data["user_id"])

	r = httptest.NewRequest("POST", "/reset", nil)
	_, err = tokens.VerifyFromQuery(r)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestActionToken_FromHeader(t *testing.T) {
	tokens := newTokenService()

	token, err := tokens.Issue(core.ActionAccountDeletion, map[string]string{"user_id": "u-1"}, 0)
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/delete", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	claims, err := tokens.VerifyFromHeader(r)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Data["user_id"])

	r = httptest.NewRequest("POST", "/delete", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = tokens.VerifyFromHeader(r)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
