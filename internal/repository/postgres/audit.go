package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const auditColumns = `id, user_id, action, entity_type, entity_id, changes, ip_address, user_agent, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
        INSERT INTO audit_logs (` + auditColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now()
	}

	_, err := r.exec(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.Changes,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, int, error) {
	filters.Pagination.Normalize()

	where := ` WHERE 1=1`
	var args []interface{}

	if filters.UserID != nil {
		where += ` AND user_id = ?`
		args = append(args, *filters.UserID)
	}
	if filters.EntityType != "" {
		where += ` AND entity_type = ?`
		args = append(args, filters.EntityType)
	}
	if filters.EntityID != nil {
		where += ` AND entity_id = ?`
		args = append(args, *filters.EntityID)
	}
	if filters.Action != "" {
		where += ` AND action = ?`
		args = append(args, filters.Action)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, filters.PageSize, filters.Offset())

	logs := []*model.AuditLog{}
	if err := r.selectAll(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.exec(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	return result.RowsAffected()
}
