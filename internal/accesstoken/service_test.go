package accesstoken

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/users"
)

const testTTL = time.Hour

func newTestService(t *testing.T) (*Service, *users.User) {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bdb.Close()
	})

	ctx := context.Background()
	_, err = bdb.NewCreateTable().Model((*users.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = bdb.NewCreateTable().Model((*AccessToken)(nil)).Exec(ctx)
	require.NoError(t, err)

	sess := db.NewSession(bdb)
	user, err := users.NewRepository(sess).Create(ctx, &users.User{
		Email:          "ada@example.com",
		HashedPassword: "irrelevant",
	})
	require.NoError(t, err)

	return NewService(NewRepository(sess), testTTL), user
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	token, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)
	// 32 random bytes in unpadded URL-safe base64.
	assert.Len(t, token.Token, 43)
	assert.Equal(t, user.ID, token.UserID)
	assert.WithinDuration(t, time.Now().UTC().Add(testTTL), token.ExpirationDate, 5*time.Second)
	require.NotNil(t, token.User)
	assert.Equal(t, user.Email, token.User.Email)
}

func TestIssueProducesUniqueTokens(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	first, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	issued, err := svc.Issue(ctx, user.ID)
	require.NoError(t, err)

	token, err := svc.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, token.Token)
	require.NotNil(t, token.User)
	assert.Equal(t, user.ID, token.User.ID)
}

func TestValidateRejectsEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Validate(ctx, "")
	require.ErrorIs(t, err, ErrInvalidAccessToken)

	_, err = svc.Validate(ctx, "no-such-token")
	require.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	expired, err := svc.Create(ctx, &AccessToken{
		Token:          "expired-token",
		UserID:         user.ID,
		ExpirationDate: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, expired.Token)
	require.ErrorIs(t, err, ErrExpiredAccessToken)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	svc, user := newTestService(t)

	now := time.Now().UTC()
	seed := []*AccessToken{
		{Token: "long-gone", UserID: user.ID, ExpirationDate: now.Add(-48 * time.Hour)},
		{Token: "just-expired", UserID: user.ID, ExpirationDate: now.Add(-time.Minute)},
		{Token: "still-valid", UserID: user.ID, ExpirationDate: now.Add(time.Hour)},
	}
	_, err := svc.CreateMany(ctx, seed)
	require.NoError(t, err)

	// Grace keeps recently expired rows around.
	removed, err := svc.PurgeExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	_, err = svc.Validate(ctx, "still-valid")
	require.NoError(t, err)
}
