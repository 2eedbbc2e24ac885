package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const outboxColumns = `id, event_type, payload, status, error_message, retry_count, retry_at,
	created_at, processed_at, updated_at`

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("event payload cannot be empty")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.RetryCount = 0
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt

	_, err := r.exec(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPending returns events ready for delivery, oldest first
func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status IN (?, ?)
		AND (retry_at IS NULL OR retry_at <= ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	events := []*model.OutboxEvent{}
	err := r.selectAll(ctx, &events, query,
		model.OutboxStatusPending, model.OutboxStatusRetry, now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM outbox_events WHERE status IN (?, ?)`
	if err := r.get(ctx, &count, query, model.OutboxStatusPending, model.OutboxStatusRetry); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return count, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	ts := now()
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = NULL, retry_at = NULL, processed_at = ?, updated_at = ?
		WHERE id = ?
	`
	return r.execOne(ctx, "outbox event", query, model.OutboxStatusProcessed, ts, ts, id)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryCount int, retryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = ?, retry_at = ?, updated_at = ?
		WHERE id = ?
	`
	return r.execOne(ctx, "outbox event", query,
		model.OutboxStatusRetry, errMsg, retryCount, retryAt.UTC(), now(), id)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = ?, retry_at = NULL, updated_at = ?
		WHERE id = ?
	`
	return r.execOne(ctx, "outbox event", query,
		model.OutboxStatusFailed, errMsg, retryCount, now(), id)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = ?
		AND processed_at < ?
	`
	result, err := r.exec(ctx, query, model.OutboxStatusProcessed, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
