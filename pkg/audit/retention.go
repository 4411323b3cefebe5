package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Pruner deletes events older than a retention window
type Pruner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Retention prunes the audit trail on a cron schedule
type Retention struct {
	pruner    Pruner
	retention time.Duration
	logger    *logrus.Logger
	cron      *cron.Cron
}

// NewRetention schedules pruner to drop events older than retention
func NewRetention(pruner Pruner, retention time.Duration, schedule string, logger *logrus.Logger) (*Retention, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if schedule == "" {
		schedule = "@daily"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Retention{
		pruner:    pruner,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins pruning on the schedule
func (r *Retention) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish
func (r *Retention) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Retention) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.WithError(err).Error("audit cleanup failed")
	}
}

// RunOnce prunes expired events once and returns how many were removed
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	n, err := r.pruner.Cleanup(ctx, r.retention)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.WithFields(logrus.Fields{
			"deleted":   n,
			"retention": r.retention.String(),
		}).Info("pruned audit events")
	}
	return n, nil
}
