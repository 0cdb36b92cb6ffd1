package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep removes expired session rows. Resolve already treats
	// them as invalid, so the sweep only reclaims storage.
	TaskSessionSweep = "sessions:sweep"
	// SessionSweepCron runs the sweep hourly.
	SessionSweepCron = "0 * * * *"
)

// NewSessionSweepTask constructs the sweep task. It carries no payload; the
// cutoff is always the database's current time.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}
