package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/shelfmark/shelfmark/internal/observability"
)

// SessionSweeper is the slice of the session store the sweep job needs.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob deletes expired session rows on a schedule.
type SessionSweepJob struct {
	store   SessionSweeper
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSessionSweepJob constructs the job.
func NewSessionSweepJob(store SessionSweeper, logger *slog.Logger, metrics *observability.Metrics) *SessionSweepJob {
	return &SessionSweepJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionSweep tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	swept, err := j.store.DeleteExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("session sweep", slog.Any("error", err))
		return err
	}
	j.metrics.RecordSessionsSwept(swept)
	if swept > 0 {
		j.logger.Info("session sweep", slog.Int64("removed", swept))
	}
	return nil
}
