package stats

import (
	"context"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

var allStatuses = []model.ServiceStatus{
	model.ServiceStatusPending,
	model.ServiceStatusInProgress,
	model.ServiceStatusCompleted,
	model.ServiceStatusCancelled,
	model.ServiceStatusClosed,
}

type Service struct {
	services repository.ServiceRepository
	payments repository.PaymentRepository
}

func NewService(services repository.ServiceRepository, payments repository.PaymentRepository) *Service {
	return &Service{services: services, payments: payments}
}

// Services counts services per status. Every status is present in the result.
func (s *Service) Services(ctx context.Context, filters model.StatsFilters) (*model.ServiceStats, error) {
	if err := checkRange(filters.DateRange); err != nil {
		return nil, err
	}

	counts, err := s.services.CountByStatus(ctx, filters)
	if err != nil {
		return nil, err
	}

	stats := &model.ServiceStats{ByStatus: make(map[model.ServiceStatus]int, len(allStatuses))}
	for _, status := range allStatuses {
		stats.ByStatus[status] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}
	return stats, nil
}

func (s *Service) Payments(ctx context.Context, filters model.StatsFilters) (*model.PaymentStats, error) {
	if err := checkRange(filters.DateRange); err != nil {
		return nil, err
	}

	summary, err := s.payments.Summary(ctx, filters)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.payments.TotalsByMethod(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &model.PaymentStats{PaymentSummary: *summary, ByMethod: byMethod}, nil
}

func (s *Service) Technicians(ctx context.Context, filters model.StatsFilters) ([]model.TechnicianStats, error) {
	if err := checkRange(filters.DateRange); err != nil {
		return nil, err
	}
	return s.services.TechnicianStats(ctx, filters)
}

func checkRange(r model.DateRange) error {
	if r.From == nil || r.To == nil {
		return nil
	}
	if r.To.Before(*r.From) || (r.ToExclusive && r.To.Equal(*r.From)) {
		return apperrors.Validation("'to' must not be before 'from'")
	}
	return nil
}
