package accesstoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bartosz121/minerva/internal/service"
)

// Token validation failures. Both lead to an anonymous request at the
// authentication gate rather than a rejected one.
var (
	// ErrInvalidAccessToken indicates an absent or unknown token value.
	ErrInvalidAccessToken = errors.New("accesstoken: invalid access token")
	// ErrExpiredAccessToken indicates a known token past its expiration date.
	ErrExpiredAccessToken = errors.New("accesstoken: expired access token")
)

const tokenEntropyBytes = 32

// Service issues and validates access tokens.
type Service struct {
	*service.Service[*AccessToken, string]
	repo *Repository
	ttl  time.Duration
}

// NewService constructs a token service over repo. ttl is the configured
// token lifetime.
func NewService(repo *Repository, ttl time.Duration) *Service {
	return &Service{Service: service.NewService[*AccessToken, string](repo), repo: repo, ttl: ttl}
}

// Issue persists a new token for userID and returns it with the owning user
// attached.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID) (*AccessToken, error) {
	value, err := generateToken()
	if err != nil {
		return nil, err
	}
	token := &AccessToken{
		Token:          value,
		UserID:         userID,
		ExpirationDate: time.Now().UTC().Add(s.ttl),
	}
	return s.Create(ctx, token)
}

// Validate checks a presented token value against storage. Validity is a
// fresh storage read on every call; results are never cached, so a token is
// valid exactly while its row exists with an expiration in the future.
func (s *Service) Validate(ctx context.Context, value string) (*AccessToken, error) {
	if value == "" {
		return nil, ErrInvalidAccessToken
	}

	token, err := s.GetOneOrNone(ctx, value)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidAccessToken
	}
	if !token.ExpirationDate.After(time.Now().UTC()) {
		return nil, ErrExpiredAccessToken
	}
	return token, nil
}

// PurgeExpired deletes tokens that expired before now minus grace. Rows it
// removes are already invalid under the validation rule, so this changes no
// observable behavior.
func (s *Service) PurgeExpired(ctx context.Context, grace time.Duration) (int, error) {
	return s.repo.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-grace))
}

// generateToken returns a URL-safe string carrying tokenEntropyBytes of
// entropy.
func generateToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("accesstoken: generate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
