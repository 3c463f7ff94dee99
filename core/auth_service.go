package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials covers unknown account, wrong provider and wrong
	// password alike, so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmailNotVerified = errors.New("email not verified")
)

// CodePolicy selects which one-time code variant an operation uses.
type CodePolicy string

const (
	CodePolicyWeak   CodePolicy = "weak"
	CodePolicyStrong CodePolicy = "strong"
)

// Default lifetimes, used when the config leaves a knob unset.
const (
	defaultActionTokenTTL  = 15 * time.Minute
	defaultConfirmCodeTTL  = 10 * time.Minute
	defaultStrongCodeTTL   = 15 * time.Minute
	defaultPendingLoginTTL = 60 * time.Second
	defaultSweepInterval   = time.Minute
)

// AuthService composes the credential services with the provider strategies
// and the pending-login store. Each ephemeral store owns an explicitly
// constructed cache instance; there is no shared global state.
type AuthService struct {
	repo    Repository
	config  *Config
	factory *StrategyFactory
	email   EmailSender

	hasher  *PasswordHasher
	tokens  *ActionTokenService
	pending *PendingAuthStore
	codes   map[CodePolicy]*CodeService

	weakCache    *Cache[CodeEntry]
	strongCache  *Cache[CodeEntry]
	pendingCache *Cache[PendingLogin]
}

func NewAuthService(repo Repository, config *Config, factory *StrategyFactory, email EmailSender) *AuthService {
	sweep := seconds(config.SweepInterval, defaultSweepInterval)

	// The weak and strong code services get isolated cache instances so
	// attempt counters can never collide across policies.
	weakCache := NewCache[CodeEntry](sweep)
	strongCache := NewCache[CodeEntry](sweep)
	pendingCache := NewCache[PendingLogin](sweep)

	return &AuthService{
		repo:    repo,
		config:  config,
		factory: factory,
		email:   email,
		hasher:  NewPasswordHasher(),
		tokens:  NewActionTokenService(config.JWTSecret, seconds(config.ActionTokenTTL, defaultActionTokenTTL)),
		pending: NewPendingAuthStore(pendingCache, seconds(config.PendingLoginTTL, defaultPendingLoginTTL)),
		codes: map[CodePolicy]*CodeService{
			CodePolicyWeak:   NewWeakCodeService(weakCache, seconds(config.ConfirmCodeTTL, defaultConfirmCodeTTL)),
			CodePolicyStrong: NewStrongCodeService(strongCache, seconds(config.StrongCodeTTL, defaultStrongCodeTTL)),
		},
		weakCache:    weakCache,
		strongCache:  strongCache,
		pendingCache: pendingCache,
	}
}

// Close stops the background sweepers.
func (s *AuthService) Close() {
	s.weakCache.Close()
	s.strongCache.Close()
	s.pendingCache.Close()
}

// OAuth flow

// GenerateAuthURL returns the provider's consent-screen URL and the state
// value embedded in it. Binding the state to the browser is the session
// collaborator's job.
func (s *AuthService) GenerateAuthURL(provider Provider) (url string, state string, err error) {
	strategy, err := s.factory.Strategy(provider)
	if err != nil {
		return "", "", err
	}

	state = uuid.NewString()
	return strategy.AuthURL(state), state, nil
}

// CompleteLogin runs the server side of the provider callback: it exchanges
// the authorization code, verifies the identity token, upserts the user
// record and stashes the result under a single-use handoff key. On any
// provider failure no local state is left behind.
func (s *AuthService) CompleteLogin(ctx context.Context, provider Provider, code string) (string, error) {
	strategy, err := s.factory.Strategy(provider)
	if err != nil {
		return "", err
	}

	tokens, err := strategy.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}

	identity, err := s.resolveIdentity(ctx, strategy, tokens)
	if err != nil {
		return "", err
	}

	if err := s.upsertOAuthUser(ctx, provider, identity); err != nil {
		return "", fmt.Errorf("failed to upsert user: %w", err)
	}

	key, err := s.pending.Put(*tokens, *identity)
	if err != nil {
		return "", fmt.Errorf("failed to store pending login: %w", err)
	}

	return key, nil
}

// ClaimLogin is the one-shot pickup of a completed login. The second call
// with the same key reports absent.
func (s *AuthService) ClaimLogin(key string) (*PendingLogin, bool) {
	return s.pending.Claim(key)
}

// RefreshProviderToken exchanges a refresh token for a fresh access token.
// A failure (revoked or expired grant) is reported to the caller; locally
// stored state is corrected lazily on the next successful refresh, not
// invalidated eagerly.
func (s *AuthService) RefreshProviderToken(ctx context.Context, provider Provider, refreshToken string) (*TokenSet, error) {
	strategy, err := s.factory.Strategy(provider)
	if err != nil {
		return nil, err
	}
	return strategy.RefreshAccessToken(ctx, refreshToken)
}

// RevokeProviderToken revokes the remote grant best-effort. A remote
// failure is logged and swallowed so local logout proceeds regardless.
func (s *AuthService) RevokeProviderToken(ctx context.Context, provider Provider, refreshToken string) {
	strategy, err := s.factory.Strategy(provider)
	if err != nil {
		return
	}

	if err := strategy.Revoke(ctx, refreshToken); err != nil {
		log.Printf("token revocation failed for provider %s: %v", provider, err)
	}
}

func (s *AuthService) resolveIdentity(ctx context.Context, strategy Strategy, tokens *TokenSet) (*Identity, error) {
	if tokens.IDToken == "" {
		identity, err := strategy.FetchUserInfo(ctx, tokens.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user info: %w", err)
		}
		return identity, nil
	}

	identity, err := strategy.VerifyIdentity(ctx, tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify identity token: %w", err)
	}

	// Supplement missing profile data from the userinfo endpoint,
	// best-effort. The verified claims always win.
	if identity.Name == "" || identity.Picture == "" {
		if info, err := strategy.FetchUserInfo(ctx, tokens.AccessToken); err == nil {
			if identity.Name == "" {
				identity.Name = info.Name
			}
			if identity.Picture == "" {
				identity.Picture = info.Picture
			}
		}
	}

	return identity, nil
}

func (s *AuthService) upsertOAuthUser(ctx context.Context, provider Provider, identity *Identity) error {
	_, err := s.repo.FindBySubject(ctx, provider, identity.Subject)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now()
	user := &User{
		ID:            uuid.New(),
		Email:         normalizeEmail(identity.Email),
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
		Provider:      provider,
		Subject:       identity.Subject,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.repo.CreateUser(ctx, user)
}

// Local accounts

// SignupLocal creates a local account with a hashed credential and emails a
// confirmation code to the address.
func (s *AuthService) SignupLocal(ctx context.Context, email string, name string, password string) (*User, error) {
	email = normalizeEmail(email)

	credential, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &User{
		ID:         uuid.New(),
		Email:      email,
		Name:       name,
		Provider:   ProviderLocal,
		Credential: credential,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	code, err := s.codes[CodePolicyWeak].Issue(email, user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to issue confirmation code: %w", err)
	}

	if err := s.email.SendConfirmationCode(ctx, email, code); err != nil {
		return nil, fmt.Errorf("failed to send confirmation code: %w", err)
	}

	return user, nil
}

// ConfirmEmail validates a confirmation code against the address it was
// issued for and marks the account verified.
func (s *AuthService) ConfirmEmail(ctx context.Context, email string, code string) error {
	email = normalizeEmail(email)

	payload, err := s.codes[CodePolicyWeak].Validate(email, code)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(payload)
	if err != nil {
		return ErrCodeExpired
	}

	return s.repo.MarkEmailVerified(ctx, userID)
}

// LoginLocal verifies a password against the stored credential. Unknown
// account, non-local account and wrong password all fail with
// ErrInvalidCredentials.
func (s *AuthService) LoginLocal(ctx context.Context, email string, password string) (*User, error) {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.Provider != ProviderLocal || len(user.Credential) == 0 {
		return nil, ErrInvalidCredentials
	}

	match, err := s.hasher.Compare(password, user.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return user, nil
}

// Deferred actions

// RequestPasswordReset issues a signed reset token and emails it as a link.
// An unknown address is reported as success so addresses cannot be
// enumerated.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user.Provider != ProviderLocal {
		return nil
	}

	token, err := s.tokens.Issue(ActionPasswordReset, map[string]string{
		"user_id": user.ID.String(),
		"email":   user.Email,
	}, 0)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.email.SendPasswordResetLink(ctx, email, token); err != nil {
		return fmt.Errorf("failed to send reset link: %w", err)
	}

	return nil
}

// ResetPassword verifies a reset token and rewrites the credential.
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if claims.Action != ActionPasswordReset {
		return ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Data["user_id"])
	if err != nil {
		return ErrInvalidToken
	}

	credential, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdateCredential(ctx, userID, credential)
}

// RequestAccountDeletion issues a signed deletion token and emails it as a
// confirmation link.
func (s *AuthService) RequestAccountDeletion(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	token, err := s.tokens.Issue(ActionAccountDeletion, map[string]string{
		"user_id": user.ID.String(),
	}, 0)
	if err != nil {
		return fmt.Errorf("failed to issue deletion token: %w", err)
	}

	if err := s.email.SendAccountDeletionLink(ctx, user.Email, token); err != nil {
		return fmt.Errorf("failed to send deletion link: %w", err)
	}

	return nil
}

// DeleteAccount verifies a deletion token and removes the account.
func (s *AuthService) DeleteAccount(ctx context.Context, token string) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if claims.Action != ActionAccountDeletion {
		return ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Data["user_id"])
	if err != nil {
		return ErrInvalidToken
	}

	return s.repo.DeleteUser(ctx, userID)
}

// Generic operations exposed to collaborators

func (s *AuthService) IssueCode(policy CodePolicy, key string, payload string) (string, error) {
	codes, ok := s.codes[policy]
	if !ok {
		return "", fmt.Errorf("unknown code policy %q", policy)
	}
	return codes.Issue(key, payload)
}

func (s *AuthService) ValidateCode(policy CodePolicy, key string, code string) (string, error) {
	codes, ok := s.codes[policy]
	if !ok {
		return "", fmt.Errorf("unknown code policy %q", policy)
	}
	return codes.Validate(key, code)
}

func (s *AuthService) IssueActionToken(action string, data map[string]string, ttl time.Duration) (string, error) {
	return s.tokens.Issue(action, data, ttl)
}

func (s *AuthService) VerifyActionToken(token string) (*ActionClaims, error) {
	return s.tokens.Verify(token)
}

func (s *AuthService) HashPassword(password string) ([]byte, error) {
	return s.hasher.Hash(password)
}

func (s *AuthService) VerifyPassword(password string, credential []byte) (bool, error) {
	return s.hasher.Compare(password, credential)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func seconds(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Second
}
