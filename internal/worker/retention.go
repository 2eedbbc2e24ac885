package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
)

// RetentionWorker periodically removes delivered outbox events and expired audit logs
type RetentionWorker struct {
	outbox          repository.OutboxRepository
	audit           repository.AuditRepository
	outboxRetention time.Duration
	retentionDays   int
	interval        time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewRetentionWorker(
	outbox repository.OutboxRepository,
	audit repository.AuditRepository,
	outboxRetention time.Duration,
	retentionDays int,
	interval time.Duration,
	log *logger.Logger,
) *RetentionWorker {
	return &RetentionWorker{
		outbox:          outbox,
		audit:           audit,
		outboxRetention: outboxRetention,
		retentionDays:   retentionDays,
		interval:        interval,
		logger:          log.With("retention_worker"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Retention cleanup failed")
			}
		}
	}
}

// Cleanup runs one pass and returns the number of outbox events and audit logs removed
func (w *RetentionWorker) Cleanup(ctx context.Context) (int64, int64, error) {
	now := w.now()

	var events int64
	if w.outboxRetention > 0 {
		n, err := w.outbox.DeleteProcessedBefore(ctx, now.Add(-w.outboxRetention))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
		}
		events = n
	}

	var logs int64
	if w.retentionDays > 0 {
		cutoff := now.AddDate(0, 0, -w.retentionDays)
		n, err := w.audit.Cleanup(ctx, cutoff)
		if err != nil {
			return events, 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
		}
		logs = n
	}

	if events > 0 || logs > 0 {
		w.logger.Info("Retention cleanup finished", "outbox_events", events, "audit_logs", logs)
	}
	return events, logs, nil
}
