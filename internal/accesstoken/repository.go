package accesstoken

import (
	"context"
	"time"

	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/repository"
)

// Repository persists access tokens through the generic engine, keyed by the
// token value.
type Repository struct {
	*repository.BunRepository[*AccessToken, string]
}

// NewRepository constructs an access token repository bound to sess.
func NewRepository(sess *db.Session, opts ...repository.Option) *Repository {
	handlers := repository.ModelHandlers[*AccessToken, string]{
		NewRecord: func() *AccessToken { return &AccessToken{} },
		GetID: func(t *AccessToken) string {
			if t == nil {
				return ""
			}
			return t.Token
		},
		IDColumn:  "token",
		Relations: []string{"User"},
	}
	return &Repository{BunRepository: repository.NewRepository(sess, handlers, opts...)}
}

// DeleteExpiredBefore removes token rows whose expiration date lies before
// cutoff. Used by the background purge job; returns the number of rows
// removed.
func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.Session().IDB().NewDelete().
		Model((*AccessToken)(nil)).
		Where("expiration_date < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, repository.NormalizeError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, repository.NormalizeError(err)
	}
	return int(affected), nil
}

var _ repository.Repository[*AccessToken, string] = (*Repository)(nil)
