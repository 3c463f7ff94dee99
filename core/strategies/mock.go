package strategies

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/David-I7/graphcalculator-sub001/core"
)

const (
	ProviderMock core.Provider = "mock"
)

// Predefined test authorization codes
const (
	ValidCode1 = "mock_auth_code_1"
	ValidCode2 = "mock_auth_code_2"
)

var errMockRejected = errors.New("mock provider rejected the request")

// Predefined test token sets
var (
	Tokens1 = &core.TokenSet{
		AccessToken:  "mock_access_token_1",
		RefreshToken: "mock_refresh_token_1",
		Provider:     ProviderMock,
	}

	Tokens2 = &core.TokenSet{
		AccessToken:  "mock_access_token_2",
		RefreshToken: "mock_refresh_token_2",
		Provider:     ProviderMock,
	}

	Tokens1Refreshed = &core.TokenSet{
		AccessToken:  "mock_access_token_1_refreshed",
		RefreshToken: "mock_refresh_token_1", // Same refresh token
		Provider:     ProviderMock,
	}

	Tokens2Refreshed = &core.TokenSet{
		AccessToken:  "mock_access_token_2_refreshed",
		RefreshToken: "mock_refresh_token_2", // Same refresh token
		Provider:     ProviderMock,
	}
)

// Predefined test identities
var (
	Identity1 = &core.Identity{
		Subject:       "mock_user_1",
		Email:         "user1@mock.test",
		EmailVerified: true,
		Name:          "Mock User One",
		Picture:       "https://mock.test/avatar1.jpg",
	}

	Identity2 = &core.Identity{
		Subject:       "mock_user_2",
		Email:         "user2@mock.test",
		EmailVerified: true,
		Name:          "Mock User Two",
		Picture:       "https://mock.test/avatar2.jpg",
	}
)

// MockStrategy is a test implementation of core.Strategy. The mock hands
// identities out through the userinfo path, so its token sets carry no ID
// token.
type MockStrategy struct {
	mu sync.Mutex

	codeToTokens     map[string]*core.TokenSet
	accessToIdentity map[string]*core.Identity
	refreshToTokens  map[string]*core.TokenSet
	revoked          map[string]bool

	// track method calls for verification
	ExchangeCodeCalls  int
	FetchUserInfoCalls int
	RefreshCalls       int
	RevokeCalls        int

	// RevokeErr makes Revoke fail, for testing best-effort revocation
	RevokeErr error
}

func NewMockStrategy() *MockStrategy {
	return &MockStrategy{
		codeToTokens: map[string]*core.TokenSet{
			ValidCode1: Tokens1,
			ValidCode2: Tokens2,
		},

		accessToIdentity: map[string]*core.Identity{
			Tokens1.AccessToken:          Identity1,
			Tokens1Refreshed.AccessToken: Identity1,
			Tokens2.AccessToken:          Identity2,
			Tokens2Refreshed.AccessToken: Identity2,
		},

		refreshToTokens: map[string]*core.TokenSet{
			Tokens1.RefreshToken: Tokens1Refreshed,
			Tokens2.RefreshToken: Tokens2Refreshed,
		},

		revoked: map[string]bool{},
	}
}

func (m *MockStrategy) AuthURL(state string) string {
	return "https://mock.test/auth?access_type=offline&state=" + state
}

func (m *MockStrategy) ExchangeCode(ctx context.Context, code string) (*core.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExchangeCodeCalls++

	tokens, ok := m.codeToTokens[code]
	if !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderExchange, errMockRejected)
	}

	copied := *tokens
	return &copied, nil
}

func (m *MockStrategy) VerifyIdentity(ctx context.Context, rawIDToken string) (*core.Identity, error) {
	return nil, fmt.Errorf("%w: mock strategy issues no ID tokens", core.ErrProviderIdentity)
}

func (m *MockStrategy) FetchUserInfo(ctx context.Context, accessToken string) (*core.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchUserInfoCalls++

	identity, ok := m.accessToIdentity[accessToken]
	if !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUserInfo, errMockRejected)
	}

	copied := *identity
	return &copied, nil
}

func (m *MockStrategy) RefreshAccessToken(ctx context.Context, refreshToken string) (*core.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++

	if m.revoked[refreshToken] {
		return nil, fmt.Errorf("%w: token revoked", core.ErrProviderRefresh)
	}

	tokens, ok := m.refreshToTokens[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderRefresh, errMockRejected)
	}

	copied := *tokens
	return &copied, nil
}

func (m *MockStrategy) Revoke(ctx context.Context, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RevokeCalls++

	if m.RevokeErr != nil {
		return fmt.Errorf("%w: %v", core.ErrProviderRevoke, m.RevokeErr)
	}

	m.revoked[refreshToken] = true
	return nil
}

func (m *MockStrategy) Provider() core.Provider {
	return ProviderMock
}
