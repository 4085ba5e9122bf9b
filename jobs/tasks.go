// Package jobs defines the background task types and the asynq worker
// wrapper.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeTokenPurge removes access token rows that expired long ago.
	TaskTypeTokenPurge = "token:purge_expired"
)

// TokenPurgePayload configures one purge run. GraceSeconds guards against
// clock skew between the worker and the database: only rows expired at
// least that long ago are removed.
type TokenPurgePayload struct {
	GraceSeconds int64 `json:"grace_seconds"`
}

// NewTokenPurgeTask constructs an asynq task for one purge run.
func NewTokenPurgeTask(payload TokenPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTokenPurge, data), nil
}
