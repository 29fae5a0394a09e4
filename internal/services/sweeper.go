package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	taskUC "github.com/shiftline/backend/usecase/task"
)

// SweeperConfig controls the overdue sweep schedule.
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Sweeper periodically pushes past-due tasks to overdue through the
// task use case. The sweep itself is idempotent, so an extra run is
// always safe.
type Sweeper struct {
	tasks  *taskUC.UseCase
	logger *zap.Logger
	cron   *cron.Cron
	cfg    SweeperConfig
}

func NewSweeper(tasks *taskUC.UseCase, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		tasks:  tasks,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := s.tasks.RunOverdueSweep(ctx, time.Now(), cfg.BatchSize); err != nil {
			s.logger.Error("overdue sweep failed", zap.Error(err))
		}
	})

	return s
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("overdue sweeper started", zap.Duration("interval", s.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("overdue sweeper stopped")
}
