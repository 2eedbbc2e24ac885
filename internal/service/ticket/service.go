// Package ticket implements the lifecycle of field services: scheduling,
// assignment, status changes, closing and locking.
package ticket

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/internal/service/event"
	"github.com/jwalitptl/fieldservice-api/internal/service/notification"
	"github.com/jwalitptl/fieldservice-api/internal/service/payment"
	"github.com/jwalitptl/fieldservice-api/internal/service/report"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

// Statuses a technician may move their own services between
var technicianStatuses = map[model.ServiceStatus]bool{
	model.ServiceStatusPending:    true,
	model.ServiceStatusInProgress: true,
	model.ServiceStatusCompleted:  true,
}

type Repositories struct {
	Tx         repository.Transactor
	Services   repository.ServiceRepository
	Users      repository.UserRepository
	Clients    repository.ClientRepository
	Categories repository.CategoryRepository
	Payments   repository.PaymentRepository
}

type Service struct {
	repos    Repositories
	reports  *report.Service
	payments *payment.Service
	events   *event.Service
	auditor  *audit.Service
	notifier notification.Service
	now      func() time.Time
}

func NewService(repos Repositories, reports *report.Service, payments *payment.Service,
	events *event.Service, auditor *audit.Service, notifier notification.Service) *Service {
	return &Service{
		repos:    repos,
		reports:  reports,
		payments: payments,
		events:   events,
		auditor:  auditor,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Service) CreateService(ctx context.Context, actor model.Actor, req model.CreateServiceRequest) (*model.Service, error) {
	if err := s.checkRelations(ctx, req.TechnicianID, req.ClientID, req.CategoryID); err != nil {
		return nil, err
	}

	svc := &model.Service{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Status:        model.ServiceStatusPending,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Address:       req.Address,
		Notes:         req.Notes,
		TechnicianID:  req.TechnicianID,
		ClientID:      req.ClientID,
		CreatedByID:   actor.ID,
		CategoryID:    req.CategoryID,
	}
	if req.ExpectedAmount != nil {
		if req.ExpectedAmount.IsNegative() {
			return nil, apperrors.Validation("expected amount cannot be negative")
		}
		svc.ExpectedAmount.Decimal = req.ExpectedAmount.Round(2)
		svc.ExpectedAmount.Valid = true
	}

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Services.Create(ctx, svc); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventServiceCreated, model.NewServiceEventPayload(svc, actor))
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityService, svc.ID, svc)
	if svc.TechnicianID != nil {
		s.notifier.ServiceAssigned(ctx, svc)
	}
	return svc, nil
}

// GetService returns a service with its related records. Technicians get a
// not found error for services assigned to someone else.
func (s *Service) GetService(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ServiceDetails, error) {
	svc, err := s.visibleService(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, svc)
}

// ListServices lists services. Technicians only see their own.
func (s *Service) ListServices(ctx context.Context, actor model.Actor, filters model.ServiceFilters) ([]*model.Service, int, error) {
	if actor.IsTechnician() {
		filters.TechnicianID = &actor.ID
	}
	return s.repos.Services.List(ctx, filters)
}

func (s *Service) UpdateService(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateServiceRequest) (*model.Service, error) {
	var svc *model.Service
	var reassigned bool

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = s.repos.Services.Get(ctx, id)
		if err != nil {
			return err
		}
		if !svc.Editable() {
			return apperrors.Conflict("service is locked or finished and cannot be updated")
		}

		if req.ExpectedAmount != nil && req.ExpectedAmount.IsNegative() {
			return apperrors.Validation("expected amount cannot be negative")
		}
		if err := s.checkRelations(ctx, req.TechnicianID, req.ClientID, req.CategoryID); err != nil {
			return err
		}

		previousTech := svc.TechnicianID
		applyUpdate(svc, req)
		reassigned = !sameID(previousTech, svc.TechnicianID)

		if err := s.repos.Services.Update(ctx, svc); err != nil {
			return err
		}
		if req.ExpectedAmount != nil {
			if err := s.payments.RefreshDebt(ctx, actor, svc); err != nil {
				return err
			}
		}

		eventType := model.EventServiceUpdated
		if reassigned {
			eventType = model.EventServiceAssigned
		}
		return s.events.Record(ctx, eventType, model.NewServiceEventPayload(svc, actor))
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityService, svc.ID, req)
	if reassigned && svc.TechnicianID != nil {
		s.notifier.ServiceAssigned(ctx, svc)
	}
	return svc, nil
}

// UpdateStatus moves a service along its lifecycle. Entering COMPLETED
// stamps completed_at, leaving it clears the stamp. CLOSED is only reached
// through CloseService.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, next model.ServiceStatus) (*model.Service, error) {
	if !next.Valid() {
		return nil, apperrors.Validation("unknown service status")
	}
	if next == model.ServiceStatusClosed {
		return nil, apperrors.Validation("services are closed through the close operation")
	}
	if actor.IsTechnician() && !technicianStatuses[next] {
		return nil, apperrors.Forbidden("technicians cannot move a service to " + string(next))
	}

	var svc *model.Service
	var from model.ServiceStatus

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = s.visibleService(ctx, actor, id)
		if err != nil {
			return err
		}
		if svc.IsLocked {
			return apperrors.Conflict("service is locked")
		}
		if actor.IsTechnician() && !technicianStatuses[svc.Status] {
			return apperrors.Forbidden("technicians cannot change a " + string(svc.Status) + " service")
		}
		if !svc.Status.CanTransitionTo(next) {
			return apperrors.Conflict("cannot move service from " + string(svc.Status) + " to " + string(next))
		}

		from = svc.Status
		svc.Status = next
		switch {
		case next == model.ServiceStatusCompleted:
			completedAt := s.now()
			svc.CompletedAt = &completedAt
		case from == model.ServiceStatusCompleted:
			svc.CompletedAt = nil
		}

		if err := s.repos.Services.Update(ctx, svc); err != nil {
			return err
		}

		payload := model.NewServiceEventPayload(svc, actor)
		payload.FromStatus = from
		return s.events.Record(ctx, model.EventServiceStatusChanged, payload)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionStatus, model.AuditEntityService, svc.ID, map[string]model.ServiceStatus{
		"from": from,
		"to":   next,
	})
	return svc, nil
}

// CloseService closes a completed service. The status change, the optional
// payment and the lock are committed together.
func (s *Service) CloseService(ctx context.Context, actor model.Actor, id uuid.UUID, req model.CloseServiceRequest) (*model.ServiceDetails, error) {
	var svc *model.Service
	var paid *model.Payment

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = s.repos.Services.Get(ctx, id)
		if err != nil {
			return err
		}
		if svc.Status != model.ServiceStatusCompleted {
			return apperrors.Conflict("only completed services can be closed")
		}

		if req.Payment != nil {
			if paid, err = s.payments.RecordForService(ctx, actor, svc, *req.Payment); err != nil {
				return err
			}
		}

		closedAt := s.now()
		closedBy := actor.ID
		svc.Status = model.ServiceStatusClosed
		svc.ClosedAt = &closedAt
		svc.ClosedByID = &closedBy
		svc.IsLocked = true

		if err := s.repos.Services.Update(ctx, svc); err != nil {
			return err
		}

		payload := model.NewServiceEventPayload(svc, actor)
		payload.FromStatus = model.ServiceStatusCompleted
		return s.events.Record(ctx, model.EventServiceClosed, payload)
	})
	if err != nil {
		return nil, err
	}

	if paid != nil {
		s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityPayment, paid.ID, paid)
	}
	s.auditor.Log(ctx, actor, model.AuditActionClose, model.AuditEntityService, svc.ID, nil)
	s.notifier.ServiceClosed(ctx, svc)

	return s.details(ctx, svc)
}

// SetLock locks or unlocks a service. Closed services stay locked.
func (s *Service) SetLock(ctx context.Context, actor model.Actor, id uuid.UUID, locked bool) (*model.Service, error) {
	var svc *model.Service
	var changed bool

	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = s.repos.Services.Get(ctx, id)
		if err != nil {
			return err
		}
		if !locked && svc.Status == model.ServiceStatusClosed {
			return apperrors.Conflict("closed services cannot be unlocked")
		}
		if svc.IsLocked == locked {
			return nil
		}

		changed = true
		svc.IsLocked = locked
		if err := s.repos.Services.Update(ctx, svc); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventServiceLockChanged, model.NewServiceEventPayload(svc, actor))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		action := model.AuditActionUnlock
		if locked {
			action = model.AuditActionLock
		}
		s.auditor.Log(ctx, actor, action, model.AuditEntityService, svc.ID, nil)
	}
	return svc, nil
}

// Reassign moves every open service of one technician to another
func (s *Service) Reassign(ctx context.Context, actor model.Actor, req model.ReassignRequest) (*model.ReassignResult, error) {
	if req.FromTechnicianID == req.ToTechnicianID {
		return nil, apperrors.Validation("source and target technician must differ")
	}
	if err := s.checkTechnician(ctx, req.ToTechnicianID); err != nil {
		return nil, err
	}

	var count int64
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.repos.Services.ReassignTechnician(ctx, req.FromTechnicianID, req.ToTechnicianID)
		if err != nil || count == 0 {
			return err
		}

		to := req.ToTechnicianID
		return s.events.Record(ctx, model.EventServicesReassigned, map[string]interface{}{
			"from_technician_id": req.FromTechnicianID,
			"technician_id":      &to,
			"count":              count,
			"actor_id":           actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	if count > 0 {
		s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityService, req.ToTechnicianID, map[string]interface{}{
			"reassigned_from": req.FromTechnicianID,
			"count":           count,
		})
	}
	return &model.ReassignResult{Reassigned: count}, nil
}

// DeleteService removes an unlocked, unfinished service with its report and payment
func (s *Service) DeleteService(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		svc, err := s.repos.Services.Get(ctx, id)
		if err != nil {
			return err
		}
		if svc.IsLocked || svc.Status == model.ServiceStatusClosed {
			return apperrors.Conflict("locked or closed services cannot be deleted")
		}

		if err := s.repos.Services.Delete(ctx, svc.ID); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventServiceDeleted, model.NewServiceEventPayload(svc, actor))
	})
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityService, id, nil)
	return nil
}

func (s *Service) visibleService(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Service, error) {
	svc, err := s.repos.Services.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !svc.VisibleTo(actor) {
		return nil, apperrors.NotFound("service")
	}
	return svc, nil
}

func (s *Service) details(ctx context.Context, svc *model.Service) (*model.ServiceDetails, error) {
	d := &model.ServiceDetails{Service: svc}

	var err error
	if d.Technician, err = s.userSummary(ctx, svc.TechnicianID); err != nil {
		return nil, err
	}
	createdBy := svc.CreatedByID
	if d.CreatedBy, err = s.userSummary(ctx, &createdBy); err != nil {
		return nil, err
	}
	if d.ClosedBy, err = s.userSummary(ctx, svc.ClosedByID); err != nil {
		return nil, err
	}

	if svc.ClientID != nil {
		if d.Client, err = s.repos.Clients.Get(ctx, *svc.ClientID); err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	if svc.CategoryID != nil {
		if d.Category, err = s.repos.Categories.Get(ctx, *svc.CategoryID); err != nil && !apperrors.IsNotFound(err) {
			return nil, err
		}
	}

	if d.Payment, err = s.repos.Payments.GetByServiceID(ctx, svc.ID); err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		d.Payment = nil
	}

	if d.Report, err = s.reports.Details(ctx, svc.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) userSummary(ctx context.Context, id *uuid.UUID) (*model.UserSummary, error) {
	if id == nil {
		return nil, nil
	}
	user, err := s.repos.Users.Get(ctx, *id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return user.Summary(), nil
}

// checkRelations validates the optional technician, client and category of a service
func (s *Service) checkRelations(ctx context.Context, technicianID, clientID, categoryID *uuid.UUID) error {
	if technicianID != nil {
		if err := s.checkTechnician(ctx, *technicianID); err != nil {
			return err
		}
	}

	if clientID != nil {
		if _, err := s.repos.Clients.Get(ctx, *clientID); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.Validation("client does not exist")
			}
			return err
		}
	}

	if categoryID != nil {
		category, err := s.repos.Categories.Get(ctx, *categoryID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.Validation("category does not exist")
			}
			return err
		}
		if !category.IsActive {
			return apperrors.Validation("category is inactive")
		}
	}
	return nil
}

func (s *Service) checkTechnician(ctx context.Context, id uuid.UUID) error {
	user, err := s.repos.Users.Get(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.Validation("technician does not exist")
		}
		return err
	}
	if user.Role != model.RoleTechnician || !user.IsActive {
		return apperrors.Validation("assignee must be an active technician")
	}
	return nil
}

func applyUpdate(svc *model.Service, req model.UpdateServiceRequest) {
	if req.Title != nil {
		svc.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		svc.Description = req.Description
	}
	if req.ScheduledDate != nil {
		svc.ScheduledDate = req.ScheduledDate
	}
	if req.ScheduledTime != nil {
		svc.ScheduledTime = req.ScheduledTime
	}
	if req.Address != nil {
		svc.Address = req.Address
	}
	if req.Notes != nil {
		svc.Notes = req.Notes
	}
	if req.ExpectedAmount != nil {
		svc.ExpectedAmount.Decimal = req.ExpectedAmount.Round(2)
		svc.ExpectedAmount.Valid = true
	}

	switch {
	case req.ClearTechnician:
		svc.TechnicianID = nil
	case req.TechnicianID != nil:
		svc.TechnicianID = req.TechnicianID
	}
	switch {
	case req.ClearClient:
		svc.ClientID = nil
	case req.ClientID != nil:
		svc.ClientID = req.ClientID
	}
	switch {
	case req.ClearCategory:
		svc.CategoryID = nil
	case req.CategoryID != nil:
		svc.CategoryID = req.CategoryID
	}
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
