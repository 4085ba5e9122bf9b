package jobs

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/observability"
	"github.com/bartosz121/minerva/internal/platform/db"
	"github.com/bartosz121/minerva/internal/users"
)

func newPurgeFixture(t *testing.T) (*TokenPurgeJob, *accesstoken.Repository) {
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
	_, err = bdb.NewCreateTable().Model((*accesstoken.AccessToken)(nil)).Exec(ctx)
	require.NoError(t, err)

	sess := db.NewSession(bdb)
	user, err := users.NewRepository(sess).Create(ctx, &users.User{
		Email:          "ada@example.com",
		HashedPassword: "irrelevant",
	})
	require.NoError(t, err)

	repo := accesstoken.NewRepository(sess)
	now := time.Now().UTC()
	seed := []*accesstoken.AccessToken{
		{Token: "long-gone", UserID: user.ID, ExpirationDate: now.Add(-48 * time.Hour)},
		{Token: "just-expired", UserID: user.ID, ExpirationDate: now.Add(-time.Minute)},
		{Token: "still-valid", UserID: user.ID, ExpirationDate: now.Add(time.Hour)},
	}
	_, err = repo.CreateMany(ctx, seed)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := NewTokenPurgeJob(bdb, logger, observability.NewMetrics(), 24*time.Hour)
	return job, repo
}

func TestTokenPurgeRemovesOnlyLongExpiredRows(t *testing.T) {
	ctx := context.Background()
	job, repo := newPurgeFixture(t)

	task, err := NewTokenPurgeTask(TokenPurgePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = repo.Get(ctx, "long-gone")
	assert.Error(t, err)
	_, err = repo.Get(ctx, "still-valid")
	assert.NoError(t, err)
}

func TestTokenPurgePayloadOverridesGrace(t *testing.T) {
	ctx := context.Background()
	job, repo := newPurgeFixture(t)

	// A ten second grace catches the row that expired a minute ago too.
	task, err := NewTokenPurgeTask(TokenPurgePayload{GraceSeconds: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTokenPurgeSkipsRetryOnBadPayload(t *testing.T) {
	job, _ := newPurgeFixture(t)

	task := asynq.NewTask(TaskTypeTokenPurge, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
