package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/internal/service/event"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

type Service struct {
	tx       repository.Transactor
	services repository.ServiceRepository
	reports  repository.ReportRepository
	payments repository.PaymentRepository
	events   *event.Service
	auditor  *audit.Service
}

func NewService(tx repository.Transactor, services repository.ServiceRepository, reports repository.ReportRepository,
	payments repository.PaymentRepository, events *event.Service, auditor *audit.Service) *Service {
	return &Service{
		tx:       tx,
		services: services,
		reports:  reports,
		payments: payments,
		events:   events,
		auditor:  auditor,
	}
}

func (s *Service) RecordPayment(ctx context.Context, actor model.Actor, serviceID uuid.UUID, req model.CreatePaymentRequest) (*model.Payment, error) {
	var payment *model.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		svc, err := s.visibleService(ctx, actor, serviceID)
		if err != nil {
			return err
		}
		payment, err = s.RecordForService(ctx, actor, svc, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityPayment, payment.ID, payment)
	return payment, nil
}

// RecordForService creates the payment of svc. It must run inside the
// caller's transaction, auditing is left to the caller.
//
// The payment is credited to the service technician, or to the actor when
// the service has none. Without an explicit spare parts cost the total of
// the report's parts is used.
func (s *Service) RecordForService(ctx context.Context, actor model.Actor, svc *model.Service, req model.CreatePaymentRequest) (*model.Payment, error) {
	if svc.Status != model.ServiceStatusCompleted && svc.Status != model.ServiceStatusClosed {
		return nil, apperrors.Conflict("payments can only be recorded for completed services")
	}
	if !req.Method.Valid() {
		return nil, apperrors.Validation("unknown payment method")
	}
	if req.AmountPaid.IsNegative() {
		return nil, apperrors.Validation("amount paid cannot be negative")
	}

	if _, err := s.payments.GetByServiceID(ctx, svc.ID); err == nil {
		return nil, apperrors.Conflict("service already has a payment")
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	technicianID := actor.ID
	if svc.TechnicianID != nil {
		technicianID = *svc.TechnicianID
	}

	cost, err := s.sparePartsCost(ctx, svc.ID, req.SparePartsCost)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		Method:         req.Method,
		AmountPaid:     req.AmountPaid.Round(2),
		SparePartsCost: cost,
		Notes:          req.Notes,
		TechnicianID:   technicianID,
		ServiceID:      svc.ID,
	}
	payment.ApplyDebt(svc.ExpectedAmount)

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := s.events.Record(ctx, model.EventPaymentRecorded, model.NewPaymentEventPayload(payment, actor)); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsTechnician() && payment.TechnicianID != actor.ID {
		return nil, apperrors.NotFound("payment")
	}
	return payment, nil
}

func (s *Service) GetServicePayment(ctx context.Context, actor model.Actor, serviceID uuid.UUID) (*model.Payment, error) {
	if _, err := s.visibleService(ctx, actor, serviceID); err != nil {
		return nil, err
	}
	return s.payments.GetByServiceID(ctx, serviceID)
}

// ListPayments lists payments. Technicians only see their own.
func (s *Service) ListPayments(ctx context.Context, actor model.Actor, filters model.PaymentFilters) ([]*model.Payment, int, error) {
	if actor.IsTechnician() {
		filters.TechnicianID = &actor.ID
	}
	return s.payments.List(ctx, filters)
}

// UpdatePayment changes a payment and recomputes its debt. Locked services
// still accept payment updates so that debts can be settled.
func (s *Service) UpdatePayment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePaymentRequest) (*model.Payment, error) {
	var payment *model.Payment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.payments.Get(ctx, id)
		if err != nil {
			return err
		}
		svc, err := s.services.Get(ctx, payment.ServiceID)
		if err != nil {
			return err
		}

		if req.Method != nil {
			if !req.Method.Valid() {
				return apperrors.Validation("unknown payment method")
			}
			payment.Method = *req.Method
		}
		if req.AmountPaid != nil {
			if req.AmountPaid.IsNegative() {
				return apperrors.Validation("amount paid cannot be negative")
			}
			payment.AmountPaid = req.AmountPaid.Round(2)
		}
		if req.SparePartsCost != nil {
			if req.SparePartsCost.IsNegative() {
				return apperrors.Validation("spare parts cost cannot be negative")
			}
			payment.SparePartsCost = req.SparePartsCost.Round(2)
		}
		if req.Notes != nil {
			payment.Notes = req.Notes
		}
		payment.ApplyDebt(svc.ExpectedAmount)

		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventPaymentUpdated, model.NewPaymentEventPayload(payment, actor))
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityPayment, payment.ID, req)
	return payment, nil
}

// RefreshDebt recomputes the debt of svc's payment after its expected amount
// changed. It must run inside the caller's transaction. Services without a
// payment are left alone.
func (s *Service) RefreshDebt(ctx context.Context, actor model.Actor, svc *model.Service) error {
	payment, err := s.payments.GetByServiceID(ctx, svc.ID)
	if apperrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	payment.ApplyDebt(svc.ExpectedAmount)
	if err := s.payments.Update(ctx, payment); err != nil {
		return err
	}
	return s.events.Record(ctx, model.EventPaymentUpdated, model.NewPaymentEventPayload(payment, actor))
}

// DeletePayment removes a payment of an unlocked service
func (s *Service) DeletePayment(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		payment, err := s.payments.Get(ctx, id)
		if err != nil {
			return err
		}
		svc, err := s.services.Get(ctx, payment.ServiceID)
		if err != nil {
			return err
		}
		if svc.IsLocked {
			return apperrors.Conflict("service is locked, its payment cannot be deleted")
		}

		if err := s.payments.Delete(ctx, payment.ID); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventPaymentDeleted, model.NewPaymentEventPayload(payment, actor))
	})
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityPayment, id, nil)
	return nil
}

func (s *Service) sparePartsCost(ctx context.Context, serviceID uuid.UUID, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if explicit != nil {
		if explicit.IsNegative() {
			return decimal.Zero, apperrors.Validation("spare parts cost cannot be negative")
		}
		return explicit.Round(2), nil
	}

	report, err := s.reports.GetByServiceID(ctx, serviceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return s.reports.SparePartsTotal(ctx, report.ID)
}

func (s *Service) visibleService(ctx context.Context, actor model.Actor, serviceID uuid.UUID) (*model.Service, error) {
	svc, err := s.services.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.VisibleTo(actor) {
		return nil, apperrors.NotFound("service")
	}
	return svc, nil
}
