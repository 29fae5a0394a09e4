package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shiftline/backend/internal/infrastructure/outbox"
)

// NoticeSender delivers a single overdue notice. Delivery transports
// (push, chat, email) live outside this service; the default sender
// just logs the notice.
type NoticeSender interface {
	Send(ctx context.Context, notice outbox.Notice) error
}

// LogSender writes notices to the log. Used until a real transport is
// plugged in.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, notice outbox.Notice) error {
	s.logger.Info("overdue notice",
		zap.String("task_id", notice.TaskID),
		zap.String("task_title", notice.TaskTitle),
		zap.String("assigner_id", notice.AssignerID),
		zap.Time("due_at", notice.DueAt))
	return nil
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// NoticeProcessor drains queued overdue notices to the sender.
type NoticeProcessor struct {
	store  *outbox.Store
	sender NoticeSender
	logger *zap.Logger
	cron   *cron.Cron
	cfg    ProcessorConfig
}

func NewNoticeProcessor(store *outbox.Store, sender NoticeSender, logger *zap.Logger, cfg ProcessorConfig) *NoticeProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &NoticeProcessor{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := p.Drain(ctx); err != nil {
			p.logger.Error("outbox drain failed", zap.Error(err))
		}
	})

	return p
}

// Start launches the cron scheduler.
func (p *NoticeProcessor) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("notice processor started")
}

// Stop gracefully stops the scheduler.
func (p *NoticeProcessor) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("notice processor stopped")
}

// Drain sends queued notices synchronously. A notice that keeps failing
// is dropped after the retry cap so one broken record cannot clog the
// queue.
func (p *NoticeProcessor) Drain(ctx context.Context) error {
	if p == nil || p.store == nil {
		return nil
	}

	notices, err := p.store.GetBatch(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, notice := range notices {
		if err := p.sender.Send(ctx, notice); err != nil {
			p.logger.Error("failed to send overdue notice",
				zap.String("notice_id", notice.ID),
				zap.String("task_id", notice.TaskID),
				zap.Error(err))

			notice.Retries++
			if notice.Retries >= p.cfg.MaxRetries {
				p.logger.Warn("dropping overdue notice (max retries reached)",
					zap.String("notice_id", notice.ID))
				_ = p.store.Remove(notice)
				continue
			}

			if err := p.store.Remove(notice); err != nil {
				p.logger.Warn("failed to remove outbox notice", zap.Error(err))
			}
			if err := p.store.Requeue(notice); err != nil {
				p.logger.Error("failed to requeue outbox notice", zap.Error(err))
			}
			continue
		}

		if err := p.store.Remove(notice); err != nil {
			p.logger.Warn("failed to purge sent notice", zap.Error(err))
		}
	}
	return nil
}
