package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/async"
)

// ExpiredReason is recorded on enrollments failed by the sweeper
const ExpiredReason = "expired"

// SweeperConfig controls how stale pending enrollments are expired
type SweeperConfig struct {
	// Schedule is a cron spec, e.g. "@every 5m"
	Schedule string
	// PendingTTL is how long an enrollment may stay pending
	PendingTTL time.Duration
	BatchSize  int
	Workers    int
}

// Sweeper periodically fails pending enrollments whose payment never
// completed
type Sweeper struct {
	ledger  *Ledger
	cfg     SweeperConfig
	logger  *logrus.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewSweeper creates a sweeper over ledger
func NewSweeper(ledger *Ledger, cfg SweeperConfig, logger *logrus.Logger) (*Sweeper, error) {
	if cfg.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending TTL must be positive")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Sweeper{
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		cron:    cron.New(),
		timeout: 10 * time.Second,
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins running the sweep on its schedule
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.WithError(err).Error("enrollment sweep failed")
	}
}

// RunOnce expires one batch of stale pending enrollments and returns how
// many were failed. Rows confirmed concurrently are skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.ledger.now().Add(-s.cfg.PendingTTL)
	ids, err := s.ledger.PendingOlderThan(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	expired := make(chan string, len(ids))
	errs := async.Batch(ctx, ids, s.cfg.Workers, "expire enrollments", s.timeout, func(ctx context.Context, id string) error {
		e, err := s.ledger.Fail(ctx, id, ExpiredReason)
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.Reason == ExpiredReason {
			expired <- id
		}
		return nil
	})
	close(expired)

	n := len(expired)
	if s.ledger.metrics != nil {
		s.ledger.metrics.Expired.Add(float64(n))
	}
	s.logger.WithFields(logrus.Fields{
		"candidates": len(ids),
		"expired":    n,
		"errors":     len(errs),
	}).Info("enrollment sweep finished")

	if len(errs) > 0 {
		return n, fmt.Errorf("failed to expire %d enrollments: %w", len(errs), errors.Join(errs...))
	}
	return n, nil
}
