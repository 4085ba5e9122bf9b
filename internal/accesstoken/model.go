// Package accesstoken issues and validates the opaque bearer tokens backing
// authenticated sessions.
package accesstoken

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/bartosz121/minerva/internal/users"
)

// AccessToken is a persisted bearer credential. The token value itself is
// the primary identifier; the owning user is eagerly loaded whenever a row
// is read.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens"`

	Token          string    `bun:"token,pk"`
	UserID         uuid.UUID `bun:"user_id,type:uuid,notnull"`
	ExpirationDate time.Time `bun:"expiration_date,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`

	User *users.User `bun:"rel:belongs-to,join:user_id=id"`
}

// SecondsUntilExpiry returns the whole seconds remaining before the token
// expires, negative once it has.
func (t *AccessToken) SecondsUntilExpiry() int {
	return int(time.Until(t.ExpirationDate).Seconds())
}

var _ bun.BeforeAppendModelHook = (*AccessToken)(nil)

// BeforeAppendModel assigns timestamps before the statement is built.
func (t *AccessToken) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}
