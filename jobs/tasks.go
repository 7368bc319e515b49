// Package jobs defines the Asynq background tasks.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGrantSweep is the task type for the orphaned grant sweep.
	TaskGrantSweep = "grants:sweep"
)

// GrantSweepPayload tunes a sweep run.
type GrantSweepPayload struct {
	DryRun bool `json:"dryRun"`
}

// NewGrantSweepTask constructs an Asynq task for the grant sweep.
func NewGrantSweepTask(payload GrantSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantSweep, data), nil
}
