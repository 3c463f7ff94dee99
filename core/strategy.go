package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrProviderExchange = errors.New("provider token exchange failed")
	ErrProviderIdentity = errors.New("provider identity verification failed")
	ErrProviderUserInfo = errors.New("provider user info request failed")
	ErrProviderRefresh  = errors.New("provider token refresh failed")
	ErrProviderRevoke   = errors.New("provider token revocation failed")

	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// TokenSet represents the tokens obtained from an OAuth provider, tagged
// with the provider they came from so they cannot be replayed against
// another provider's verification logic.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
	Provider     Provider
}

// Identity represents the verified identity claims of a provider account
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Strategy is the capability contract every identity provider implements.
// All network-bound calls take a context so a hung provider cannot hang the
// caller indefinitely.
type Strategy interface {
	// AuthURL builds the provider's consent-screen URL requesting offline
	// access and identity scopes, carrying the given state value.
	AuthURL(state string) string

	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)

	// VerifyIdentity cryptographically verifies the identity token's
	// signature, issuer and audience. Unverified claims are never trusted.
	VerifyIdentity(ctx context.Context, rawIDToken string) (*Identity, error)

	FetchUserInfo(ctx context.Context, accessToken string) (*Identity, error)

	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Revoke is best-effort remote revocation; a failure never blocks the
	// local logout flow.
	Revoke(ctx context.Context, refreshToken string) error

	Provider() Provider
}

// StrategyFactory maps a provider to its registered strategy.
type StrategyFactory struct {
	strategies map[Provider]Strategy
}

func NewStrategyFactory(strategies ...Strategy) *StrategyFactory {
	m := make(map[Provider]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Provider()] = s
	}
	return &StrategyFactory{strategies: m}
}

// Strategy returns the strategy for a provider, failing with
// ErrUnsupportedProvider for provider values arriving from user input.
func (f *StrategyFactory) Strategy(provider Provider) (Strategy, error) {
	s, ok := f.strategies[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return s, nil
}

// MustStrategy returns the strategy for a provider known at wiring time.
// An unregistered provider here is a programming error.
func (f *StrategyFactory) MustStrategy(provider Provider) Strategy {
	s, ok := f.strategies[provider]
	if !ok {
		panic(fmt.Sprintf("no strategy registered for provider %q", provider))
	}
	return s
}

// Providers lists the registered providers.
func (f *StrategyFactory) Providers() []Provider {
	out := make([]Provider, 0, len(f.strategies))
	for p := range f.strategies {
		out = append(out, p)
	}
	return out
}
