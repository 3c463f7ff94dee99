package strategies

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/David-I7/graphcalculator-sub001/core"
)

const (
	googleIssuer        = "https://accounts.google.com"
	googleRevocationURL = "https://oauth2.googleapis.com/revoke"
)

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`

	// Issuer and RevocationURL are overridable so tests can point the
	// strategy at a mock provider. Empty means Google's endpoints.
	Issuer        string `yaml:"issuer,omitempty"`
	RevocationURL string `yaml:"revocation_url,omitempty"`
}

// GoogleStrategy implements the provider contract against Google's OpenID
// Connect endpoints, discovered from the issuer at construction time.
type GoogleStrategy struct {
	config     *GoogleConfig
	httpClient *http.Client

	provider    *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	oauthConfig *oauth2.Config
}

func NewGoogleStrategy(ctx context.Context, config *GoogleConfig) (*GoogleStrategy, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	issuer := config.Issuer
	if issuer == "" {
		issuer = googleIssuer
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover provider %s: %w", issuer, err)
	}

	return &GoogleStrategy{
		config:     config,
		httpClient: httpClient,
		provider:   provider,
		verifier:   provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// AuthURL requests offline access and forces the consent screen. Without
// forced consent Google omits the refresh token when a previously granted,
// possibly revoked, session still looks logged in.
func (g *GoogleStrategy) AuthURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleStrategy) ExchangeCode(ctx context.Context, code string) (*core.TokenSet, error) {
	token, err := g.oauthConfig.Exchange(g.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderExchange, err)
	}

	idToken, _ := token.Extra("id_token").(string)

	return &core.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		Expiry:       token.Expiry,
		Provider:     core.ProviderGoogle,
	}, nil
}

func (g *GoogleStrategy) VerifyIdentity(ctx context.Context, rawIDToken string) (*core.Identity, error) {
	idToken, err := g.verifier.Verify(oidc.ClientContext(ctx, g.httpClient), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderIdentity, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderIdentity, err)
	}

	return &core.Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (g *GoogleStrategy) FetchUserInfo(ctx context.Context, accessToken string) (*core.Identity, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})

	userInfo, err := g.provider.UserInfo(oidc.ClientContext(ctx, g.httpClient), source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUserInfo, err)
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUserInfo, err)
	}

	return &core.Identity{
		Subject:       userInfo.Subject,
		Email:         userInfo.Email,
		EmailVerified: userInfo.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (g *GoogleStrategy) RefreshAccessToken(ctx context.Context, refreshToken string) (*core.TokenSet, error) {
	source := g.oauthConfig.TokenSource(g.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProviderRefresh, err)
	}

	newRefreshToken := token.RefreshToken
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	return &core.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: newRefreshToken,
		Expiry:       token.Expiry,
		Provider:     core.ProviderGoogle,
	}, nil
}

func (g *GoogleStrategy) Revoke(ctx context.Context, refreshToken string) error {
	revocationURL := g.config.RevocationURL
	if revocationURL == "" {
		revocationURL = googleRevocationURL
	}

	data := url.Values{}
	data.Set("token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", revocationURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrProviderRevoke, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrProviderRevoke, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", core.ErrProviderRevoke, resp.StatusCode, string(body))
	}

	return nil
}

func (g *GoogleStrategy) Provider() core.Provider {
	return core.ProviderGoogle
}

func (g *GoogleStrategy) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}
