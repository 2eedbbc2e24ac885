package report

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/internal/service/event"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

// Service manages the closing report of a service together with its photos
// and spare parts. Writes need a service that is neither locked nor
// finished, and technicians only reach their own services.
type Service struct {
	tx       repository.Transactor
	services repository.ServiceRepository
	reports  repository.ReportRepository
	events   *event.Service
	auditor  *audit.Service
}

func NewService(tx repository.Transactor, services repository.ServiceRepository, reports repository.ReportRepository,
	events *event.Service, auditor *audit.Service) *Service {
	return &Service{
		tx:       tx,
		services: services,
		reports:  reports,
		events:   events,
		auditor:  auditor,
	}
}

func (s *Service) GetReport(ctx context.Context, actor model.Actor, serviceID uuid.UUID) (*model.ReportDetails, error) {
	if _, err := s.visibleService(ctx, actor, serviceID); err != nil {
		return nil, err
	}

	details, err := s.Details(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, apperrors.NotFound("report")
	}
	return details, nil
}

// Details loads the report of a service with its photos, parts and parts
// total. It returns nil when the service has no report yet.
func (s *Service) Details(ctx context.Context, serviceID uuid.UUID) (*model.ReportDetails, error) {
	report, err := s.reports.GetByServiceID(ctx, serviceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	photos, err := s.reports.ListPhotos(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	parts, err := s.reports.ListSpareParts(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	total, err := s.reports.SparePartsTotal(ctx, report.ID)
	if err != nil {
		return nil, err
	}

	return &model.ReportDetails{
		ServiceReport:   report,
		Photos:          photos,
		SpareParts:      parts,
		SparePartsTotal: total,
	}, nil
}

func (s *Service) UpsertReport(ctx context.Context, actor model.Actor, serviceID uuid.UUID, req model.UpsertReportRequest) (*model.ReportDetails, error) {
	var report *model.ServiceReport
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report = &model.ServiceReport{ServiceID: svc.ID, FinalReport: req.FinalReport}
		return s.reports.Upsert(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, report.ID, req)
	return s.Details(ctx, serviceID)
}

func (s *Service) DeleteReport(ctx context.Context, actor model.Actor, serviceID uuid.UUID) error {
	var reportID uuid.UUID
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.reports.GetByServiceID(ctx, svc.ID)
		if err != nil {
			return err
		}
		reportID = report.ID
		return s.reports.Delete(ctx, report.ID)
	})
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityReport, reportID, nil)
	return nil
}

// AddPhoto attaches a photo, creating an empty report first when needed.
// Without a display order the photo goes after the existing ones.
func (s *Service) AddPhoto(ctx context.Context, actor model.Actor, serviceID uuid.UUID, req model.AddPhotoRequest) (*model.ServicePhoto, error) {
	photo := &model.ServicePhoto{
		URL:            req.URL,
		TechnicalNotes: req.TechnicalNotes,
		DisplayOrder:   -1,
	}
	if req.DisplayOrder != nil {
		photo.DisplayOrder = *req.DisplayOrder
	}

	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.ensureReport(ctx, svc.ID)
		if err != nil {
			return err
		}
		photo.ReportID = report.ID
		return s.reports.AddPhoto(ctx, photo)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, photo.ReportID, map[string]interface{}{
		"photo_added": photo,
	})
	return photo, nil
}

func (s *Service) DeletePhoto(ctx context.Context, actor model.Actor, serviceID, photoID uuid.UUID) error {
	var reportID uuid.UUID
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.reports.GetByServiceID(ctx, svc.ID)
		if err != nil {
			return err
		}
		reportID = report.ID
		return s.reports.DeletePhoto(ctx, report.ID, photoID)
	})
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, reportID, map[string]interface{}{
		"photo_removed": photoID,
	})
	return nil
}

// DeletePhotos removes every photo of the report
func (s *Service) DeletePhotos(ctx context.Context, actor model.Actor, serviceID uuid.UUID) (*model.DeletedCount, error) {
	var reportID uuid.UUID
	var deleted int64
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.reports.GetByServiceID(ctx, svc.ID)
		if err != nil {
			return err
		}
		reportID = report.ID
		deleted, err = s.reports.DeletePhotos(ctx, report.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, reportID, map[string]interface{}{
		"photos_removed": deleted,
	})
	return &model.DeletedCount{Deleted: deleted}, nil
}

// AddSpareParts records the parts as one batch. Totals are computed per
// line and rounded to cents.
func (s *Service) AddSpareParts(ctx context.Context, actor model.Actor, serviceID uuid.UUID, reqs []model.AddSparePartRequest) ([]*model.SparePart, error) {
	if len(reqs) == 0 {
		return nil, apperrors.Validation("at least one spare part is required")
	}

	parts := make([]*model.SparePart, 0, len(reqs))
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return nil, apperrors.Validation("spare part quantity must be positive")
		}
		if r.UnitPrice.IsNegative() {
			return nil, apperrors.Validation("spare part unit price cannot be negative")
		}
		parts = append(parts, &model.SparePart{
			Name:      r.Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Notes:     r.Notes,
		})
	}

	var reportID uuid.UUID
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.ensureReport(ctx, svc.ID)
		if err != nil {
			return err
		}
		reportID = report.ID
		for _, p := range parts {
			p.ReportID = report.ID
		}
		return s.reports.AddSpareParts(ctx, parts)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, reportID, map[string]interface{}{
		"spare_parts_added": parts,
	})
	return parts, nil
}

func (s *Service) DeleteSparePart(ctx context.Context, actor model.Actor, serviceID, partID uuid.UUID) error {
	var reportID uuid.UUID
	err := s.write(ctx, actor, serviceID, func(ctx context.Context, svc *model.Service) error {
		report, err := s.reports.GetByServiceID(ctx, svc.ID)
		if err != nil {
			return err
		}
		reportID = report.ID
		return s.reports.DeleteSparePart(ctx, report.ID, partID)
	})
	if err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityReport, reportID, map[string]interface{}{
		"spare_part_removed": partID,
	})
	return nil
}

// write runs fn in a transaction against an editable service and records a
// report.updated event alongside the change
func (s *Service) write(ctx context.Context, actor model.Actor, serviceID uuid.UUID, fn func(ctx context.Context, svc *model.Service) error) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		svc, err := s.visibleService(ctx, actor, serviceID)
		if err != nil {
			return err
		}
		if !svc.Editable() {
			return apperrors.Conflict("service is locked, its report can no longer change")
		}

		if err := fn(ctx, svc); err != nil {
			return err
		}
		return s.events.Record(ctx, model.EventReportUpdated, model.NewServiceEventPayload(svc, actor))
	})
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

func (s *Service) ensureReport(ctx context.Context, serviceID uuid.UUID) (*model.ServiceReport, error) {
	report, err := s.reports.GetByServiceID(ctx, serviceID)
	if err == nil {
		return report, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	report = &model.ServiceReport{ServiceID: serviceID}
	if err := s.reports.Upsert(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}
