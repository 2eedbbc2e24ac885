package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const serviceColumns = `id, title, description, status, scheduled_date, scheduled_time, address,
	completed_at, closed_at, notes, expected_amount, is_locked, technician_id, client_id,
	created_by_id, closed_by_id, category_id, created_at, updated_at`

var serviceSortColumns = map[string]string{
	"scheduled_date": "scheduled_date",
	"created_at":     "created_at",
	"status":         "status",
	"title":          "title",
}

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) Create(ctx context.Context, s *model.Service) error {
	query := `
		INSERT INTO services (` + serviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = model.ServiceStatusPending
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt

	_, err := r.exec(ctx, query,
		s.ID,
		s.Title,
		s.Description,
		s.Status,
		s.ScheduledDate,
		s.ScheduledTime,
		s.Address,
		s.CompletedAt,
		s.ClosedAt,
		s.Notes,
		s.ExpectedAmount,
		s.IsLocked,
		s.TechnicianID,
		s.ClientID,
		s.CreatedByID,
		s.ClosedByID,
		s.CategoryID,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create service: %w", err), "service")
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var s model.Service
	if err := r.get(ctx, &s, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id); err != nil {
		return nil, mapError(err, "service")
	}
	return &s, nil
}

func (r *serviceRepository) Update(ctx context.Context, s *model.Service) error {
	query := `
		UPDATE services SET
			title = ?,
			description = ?,
			status = ?,
			scheduled_date = ?,
			scheduled_time = ?,
			address = ?,
			completed_at = ?,
			closed_at = ?,
			notes = ?,
			expected_amount = ?,
			is_locked = ?,
			technician_id = ?,
			client_id = ?,
			closed_by_id = ?,
			category_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	s.UpdatedAt = now()
	return r.execOne(ctx, "service", query,
		s.Title,
		s.Description,
		s.Status,
		s.ScheduledDate,
		s.ScheduledTime,
		s.Address,
		s.CompletedAt,
		s.ClosedAt,
		s.Notes,
		s.ExpectedAmount,
		s.IsLocked,
		s.TechnicianID,
		s.ClientID,
		s.ClosedByID,
		s.CategoryID,
		s.UpdatedAt,
		s.ID,
	)
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "service", `DELETE FROM services WHERE id = ?`, id)
}

func (r *serviceRepository) List(ctx context.Context, filters model.ServiceFilters) ([]*model.Service, int, error) {
	filters.Pagination.Normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}

	if len(filters.Statuses) > 0 {
		where += ` AND status IN (` + placeholders(len(filters.Statuses)) + `)`
		for _, st := range filters.Statuses {
			args = append(args, st)
		}
	}
	if filters.TechnicianID != nil {
		where += ` AND technician_id = ?`
		args = append(args, *filters.TechnicianID)
	}
	if filters.ClientID != nil {
		where += ` AND client_id = ?`
		args = append(args, *filters.ClientID)
	}
	if filters.CategoryID != nil {
		where += ` AND category_id = ?`
		args = append(args, *filters.CategoryID)
	}
	if filters.CreatedByID != nil {
		where += ` AND created_by_id = ?`
		args = append(args, *filters.CreatedByID)
	}
	if filters.IsLocked != nil {
		where += ` AND is_locked = ?`
		args = append(args, *filters.IsLocked)
	}
	clause, rangeArgs := dateRange("scheduled_date", filters.Scheduled)
	where += clause
	args = append(args, rangeArgs...)
	if filters.Search != "" {
		where += ` AND (LOWER(title) LIKE ? OR LOWER(COALESCE(address, '')) LIKE ?)`
		pattern := likePattern(filters.Search)
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM services`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	query := `SELECT ` + serviceColumns + ` FROM services` + where +
		orderBy(filters.SortOrder, serviceSortColumns, "created_at DESC, id ASC") +
		` LIMIT ? OFFSET ?`
	args = append(args, filters.PageSize, filters.Offset())

	services := []*model.Service{}
	if err := r.selectAll(ctx, &services, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}
	return services, total, nil
}

// ReassignTechnician moves the open, unlocked services of one technician to another
func (r *serviceRepository) ReassignTechnician(ctx context.Context, from, to uuid.UUID) (int64, error) {
	query := `
		UPDATE services SET technician_id = ?, updated_at = ?
		WHERE technician_id = ? AND is_locked = ? AND status NOT IN (?, ?)
	`

	result, err := r.exec(ctx, query, to, now(), from, false,
		model.ServiceStatusClosed, model.ServiceStatusCancelled)
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to reassign services: %w", err), "service")
	}
	return result.RowsAffected()
}

func (r *serviceRepository) CountByStatus(ctx context.Context, filters model.StatsFilters) ([]model.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM services WHERE 1=1`
	clause, args := dateRange("created_at", filters.DateRange)
	query += clause
	if filters.TechnicianID != nil {
		query += ` AND technician_id = ?`
		args = append(args, *filters.TechnicianID)
	}
	query += ` GROUP BY status ORDER BY status`

	counts := []model.StatusCount{}
	if err := r.selectAll(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to count services by status: %w", err)
	}
	return counts, nil
}

// TechnicianStats aggregates the workload of every technician over services
// created and payments recorded inside the window
func (r *serviceRepository) TechnicianStats(ctx context.Context, filters model.StatsFilters) ([]model.TechnicianStats, error) {
	serviceRange, serviceArgs := dateRange("s.created_at", filters.DateRange)
	paymentRange, paymentArgs := dateRange("p.created_at", filters.DateRange)

	query := `
		SELECT
			u.id AS technician_id,
			u.name AS name,
			COUNT(s.id) AS assigned,
			COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS closed,
			(SELECT COALESCE(SUM(p.amount_paid), 0) FROM payments p
			  WHERE p.technician_id = u.id` + paymentRange + `) AS collected
		FROM users u
		LEFT JOIN services s ON s.technician_id = u.id` + serviceRange + `
		WHERE u.role = ?`

	args := []interface{}{model.ServiceStatusCompleted, model.ServiceStatusClosed}
	args = append(args, paymentArgs...)
	args = append(args, serviceArgs...)
	args = append(args, model.RoleTechnician)

	if filters.TechnicianID != nil {
		query += ` AND u.id = ?`
		args = append(args, *filters.TechnicianID)
	}
	query += ` GROUP BY u.id, u.name ORDER BY u.name ASC`

	stats := []model.TechnicianStats{}
	if err := r.selectAll(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate technician stats: %w", err)
	}
	for i := range stats {
		stats[i].Collected = stats[i].Collected.Round(2)
	}
	return stats, nil
}

// dateRange renders the optional bounds of a range filter on col
func dateRange(col string, dr model.DateRange) (string, []interface{}) {
	clause := ""
	args := []interface{}{}
	if dr.From != nil {
		clause += ` AND ` + col + ` >= ?`
		args = append(args, dr.From.UTC())
	}
	if dr.To != nil {
		op := ` <= ?`
		if dr.ToExclusive {
			op = ` < ?`
		}
		clause += ` AND ` + col + op
		args = append(args, dr.To.UTC())
	}
	return clause, args
}
