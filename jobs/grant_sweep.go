package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vantage-admin/vantage-admin/internal/jobs"
)

// SweepStore removes grants whose role, item, or permission has been retired.
type SweepStore interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// CacheBumper invalidates cached role views after a sweep removed rows.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// GrantSweepJob reconciles the grant store against the catalog. Catalog and
// role retirement happen in external administrative processes, so orphaned
// grant rows can appear between sweeps; they are corruption and must never
// reach a role view.
type GrantSweepJob struct {
	Store   SweepStore
	Cache   CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGrantSweepJob initialises the sweep handler.
func NewGrantSweepJob(store SweepStore, cache CacheBumper, logger *slog.Logger) *GrantSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantSweepJob{Store: store, Cache: cache, Logger: logger}
}

// Handle executes the sweep.
func (j *GrantSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("grant sweep: handler not configured")
	}
	var payload GrantSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.DryRun {
		j.Logger.Info("grant sweep dry run requested, skipping delete")
		return nil
	}

	tracker := j.Metrics.Track(TaskGrantSweep)
	removed, err := j.Store.DeleteOrphans(ctx)
	if err != nil {
		j.Logger.Error("grant sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddOrphansRemoved(removed)
	_ = tracker.End(nil)
	if removed > 0 && j.Cache != nil {
		if err := j.Cache.Bump(ctx); err != nil {
			j.Logger.Warn("bump permissions cache after sweep", slog.Any("error", err))
		}
	}
	j.Logger.Info("grant sweep finished", slog.Int64("removed", removed))
	return nil
}
