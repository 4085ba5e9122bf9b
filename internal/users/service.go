package users

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bartosz121/minerva/internal/repository"
	"github.com/bartosz121/minerva/internal/service"
)

// ErrEmailAlreadyExists is returned on sign-up with a registered email.
var ErrEmailAlreadyExists = errors.New("users: email already exists")

// Service wraps user business rules around the generic service.
type Service struct {
	*service.Service[*User, uuid.UUID]
	repo *Repository
}

// NewService constructs a user service over repo.
func NewService(repo *Repository) *Service {
	return &Service{Service: service.NewService[*User, uuid.UUID](repo), repo: repo}
}

// GetOneOrNoneByEmail fetches a user by email, nil when absent.
func (s *Service) GetOneOrNoneByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetOneOrNoneByEmail(ctx, email)
}

// SignUp registers a new account with a hashed password. The storage unique
// constraint still guards the race between the lookup and the insert; that
// violation also surfaces as ErrEmailAlreadyExists.
func (s *Service) SignUp(ctx context.Context, email, password string) (*User, error) {
	taken, err := s.Exists(ctx, repository.Eq("email", email))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailAlreadyExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.Create(ctx, &User{Email: email, HashedPassword: hashed})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}
	return user, nil
}
