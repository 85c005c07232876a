package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sumgit/sumgit/internal/domain"
	"github.com/sumgit/sumgit/internal/middleware"
	"github.com/sumgit/sumgit/internal/port"
	"github.com/sumgit/sumgit/pkg/config"
)

// UserStore is the slice of the persistent store auth needs.
type UserStore interface {
	UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthService handles the authentication flow.
type AuthService struct {
	providers port.AuthProviderRegistry
	store     UserStore
	jwtCfg    middleware.JWTConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(providers port.AuthProviderRegistry, store UserStore, cfg *config.Config) *AuthService {
	return &AuthService{
		providers: providers,
		store:     store,
		jwtCfg: middleware.JWTConfig{
			Secret:    cfg.JWTSecret,
			Issuer:    cfg.JWTIssuer,
			ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
		},
	}
}

// GetAuthURL returns the OAuth2 authorization URL for the given provider.
func (s *AuthService) GetAuthURL(providerName, state string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", fmt.Errorf("unknown provider: %s", providerName)
	}
	return provider.AuthURL(state), nil
}

// HandleCallback processes the OAuth2 callback, exchanges code, upserts user, and returns a JWT.
func (s *AuthService) HandleCallback(ctx context.Context, providerName, code string) (string, *domain.User, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", nil, fmt.Errorf("unknown provider: %s", providerName)
	}

	tokens, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("exchange code: %w", err)
	}

	profile, err := provider.GetUserProfile(ctx, tokens.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("get profile: %w", err)
	}

	// Store the OAuth access token for later GitHub API calls.
	profile.AccessToken = tokens.AccessToken

	user, err := s.store.UpsertUser(ctx, profile)
	if err != nil {
		return "", nil, fmt.Errorf("upsert user: %w", err)
	}

	jwt, err := middleware.GenerateJWT(user, s.jwtCfg)
	if err != nil {
		return "", nil, fmt.Errorf("generate jwt: %w", err)
	}

	slog.Info("user authenticated", "user_id", user.ID, "provider", providerName)
	return jwt, user, nil
}

// UserToken returns the stored GitHub access token for a user, empty if none.
func (s *AuthService) UserToken(ctx context.Context, userID string) string {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.AccessToken
}
