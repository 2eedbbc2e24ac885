package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const paymentColumns = `id, method, amount_paid, spare_parts_cost, debt_amount, has_debt, notes,
	technician_id, service_id, created_at, updated_at`

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

func (r *paymentRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	_, err := r.exec(ctx, query,
		p.ID,
		p.Method,
		p.AmountPaid,
		p.SparePartsCost,
		p.DebtAmount,
		p.HasDebt,
		p.Notes,
		p.TechnicianID,
		p.ServiceID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create payment: %w", err), "payment")
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.get(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id); err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.get(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE service_id = ?`, serviceID); err != nil {
		return nil, mapError(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *model.Payment) error {
	query := `
		UPDATE payments SET
			method = ?,
			amount_paid = ?,
			spare_parts_cost = ?,
			debt_amount = ?,
			has_debt = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`

	p.UpdatedAt = now()
	return r.execOne(ctx, "payment", query,
		p.Method,
		p.AmountPaid,
		p.SparePartsCost,
		p.DebtAmount,
		p.HasDebt,
		p.Notes,
		p.UpdatedAt,
		p.ID,
	)
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "payment", `DELETE FROM payments WHERE id = ?`, id)
}

func (r *paymentRepository) List(ctx context.Context, filters model.PaymentFilters) ([]*model.Payment, int, error) {
	filters.Pagination.Normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}

	if filters.Method != nil {
		where += ` AND method = ?`
		args = append(args, *filters.Method)
	}
	if filters.TechnicianID != nil {
		where += ` AND technician_id = ?`
		args = append(args, *filters.TechnicianID)
	}
	if filters.HasDebt != nil {
		where += ` AND has_debt = ?`
		args = append(args, *filters.HasDebt)
	}
	clause, rangeArgs := dateRange("created_at", filters.Created)
	where += clause
	args = append(args, rangeArgs...)

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM payments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments` + where +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, filters.PageSize, filters.Offset())

	payments := []*model.Payment{}
	if err := r.selectAll(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

func paymentStatsWhere(filters model.StatsFilters) (string, []interface{}) {
	where, args := dateRange("created_at", filters.DateRange)
	if filters.TechnicianID != nil {
		where += ` AND technician_id = ?`
		args = append(args, *filters.TechnicianID)
	}
	return ` WHERE 1=1` + where, args
}

// Summary sums the amounts of every payment matching filters
func (r *paymentRepository) Summary(ctx context.Context, filters model.StatsFilters) (*model.PaymentSummary, error) {
	where, args := paymentStatsWhere(filters)
	query := `
		SELECT
			COUNT(*) AS count,
			COALESCE(SUM(CASE WHEN has_debt THEN 1 ELSE 0 END), 0) AS debtor_count,
			COALESCE(SUM(amount_paid), 0) AS amount_paid,
			COALESCE(SUM(spare_parts_cost), 0) AS spare_parts_cost,
			COALESCE(SUM(debt_amount), 0) AS debt_amount
		FROM payments` + where

	var summary model.PaymentSummary
	if err := r.get(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("failed to summarise payments: %w", err)
	}
	summary.AmountPaid = summary.AmountPaid.Round(2)
	summary.SparePartsCost = summary.SparePartsCost.Round(2)
	summary.DebtAmount = summary.DebtAmount.Round(2)
	return &summary, nil
}

func (r *paymentRepository) TotalsByMethod(ctx context.Context, filters model.StatsFilters) ([]model.MethodTotal, error) {
	where, args := paymentStatsWhere(filters)
	query := `
		SELECT method, COUNT(*) AS count, COALESCE(SUM(amount_paid), 0) AS amount
		FROM payments` + where + `
		GROUP BY method
		ORDER BY method`

	totals := []model.MethodTotal{}
	if err := r.selectAll(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("failed to total payments by method: %w", err)
	}
	for i := range totals {
		totals[i].Amount = totals[i].Amount.Round(2)
	}
	return totals, nil
}
