package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/repository"
)

// Repository persists users through the generic engine.
type Repository struct {
	*repository.BunRepository[*User, uuid.UUID]
}

// NewRepository constructs a user repository bound to sess.
func NewRepository(sess *db.Session, opts ...repository.Option) *Repository {
	handlers := repository.ModelHandlers[*User, uuid.UUID]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		IDColumn: "id",
	}
	return &Repository{BunRepository: repository.NewRepository(sess, handlers, opts...)}
}

// GetOneOrNoneByEmail fetches a user by email, nil when absent.
func (r *Repository) GetOneOrNoneByEmail(ctx context.Context, email string) (*User, error) {
	matches, err := r.List(ctx, repository.Eq("email", email))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

var _ repository.Repository[*User, uuid.UUID] = (*Repository)(nil)
