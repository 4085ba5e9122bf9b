package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/uptrace/bun"

	"github.com/bartosz121/minerva/internal/accesstoken"
	"github.com/bartosz121/minerva/internal/observability"
	"github.com/bartosz121/minerva/internal/platform/db"
)

// TokenPurgeJob deletes access token rows whose expiration already passed.
// Those rows are invalid under the validation rule either way; this is
// storage garbage collection, not revocation.
type TokenPurgeJob struct {
	db      *bun.DB
	logger  *slog.Logger
	metrics *observability.Metrics
	grace   time.Duration
}

// NewTokenPurgeJob constructs the purge job. grace is the default period a
// row must have been expired before it is removed.
func NewTokenPurgeJob(bdb *bun.DB, logger *slog.Logger, metrics *observability.Metrics, grace time.Duration) *TokenPurgeJob {
	return &TokenPurgeJob{db: bdb, logger: logger, metrics: metrics, grace: grace}
}

// Handle processes TaskTypeTokenPurge tasks.
func (j *TokenPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload TokenPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	grace := j.grace
	if payload.GraceSeconds > 0 {
		grace = time.Duration(payload.GraceSeconds) * time.Second
	}

	sess := db.NewSession(j.db)
	repo := accesstoken.NewRepository(sess)
	removed, err := repo.DeleteExpiredBefore(ctx, time.Now().UTC().Add(-grace))
	if err != nil {
		j.logger.Error("purge expired tokens", slog.Any("error", err))
		j.metrics.JobRun(TaskTypeTokenPurge, "error")
		return err
	}

	j.logger.Info("purged expired tokens", slog.Int("removed", removed))
	j.metrics.JobRun(TaskTypeTokenPurge, "ok")
	return nil
}
