package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/pkg/mail"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

const (
	kindAssigned = "service_assigned"
	kindClosed   = "service_closed"
)

// Service mails technicians about their services. Delivery failures are
// logged and counted, they never fail the operation that triggered them.
type Service interface {
	ServiceAssigned(ctx context.Context, svc *model.Service)
	ServiceClosed(ctx context.Context, svc *model.Service)
}

type service struct {
	users   repository.UserRepository
	sender  mail.Sender
	metrics *metrics.Metrics
}

func NewService(users repository.UserRepository, sender mail.Sender, m *metrics.Metrics) Service {
	return &service{
		users:   users,
		sender:  sender,
		metrics: m,
	}
}

func (s *service) ServiceAssigned(ctx context.Context, svc *model.Service) {
	s.notifyTechnician(ctx, kindAssigned, svc,
		"New service assigned: "+svc.Title,
		assignedBody(svc),
	)
}

func (s *service) ServiceClosed(ctx context.Context, svc *model.Service) {
	s.notifyTechnician(ctx, kindClosed, svc,
		"Service closed: "+svc.Title,
		fmt.Sprintf("The service %q (%s) has been closed.\n", svc.Title, svc.ID),
	)
}

func (s *service) notifyTechnician(ctx context.Context, kind string, svc *model.Service, subject, body string) {
	if svc.TechnicianID == nil {
		return
	}

	technician, err := s.users.Get(ctx, *svc.TechnicianID)
	if err != nil {
		log.Error().Err(err).Str("service_id", svc.ID.String()).Msg("Failed to load technician for notification")
		s.count(kind, "error")
		return
	}
	if !technician.IsActive {
		s.count(kind, "skipped")
		return
	}

	if err := s.sender.Send(ctx, technician.Email, subject, body); err != nil {
		log.Error().
			Err(err).
			Str("kind", kind).
			Str("service_id", svc.ID.String()).
			Str("technician_id", technician.ID.String()).
			Msg("Failed to send notification")
		s.count(kind, "error")
		return
	}
	s.count(kind, "sent")
}

func (s *service) count(kind, status string) {
	if s.metrics != nil {
		s.metrics.MailsSent.WithLabelValues(kind, status).Inc()
	}
}

func assignedBody(svc *model.Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have been assigned the service %q.\n\n", svc.Title)
	if svc.ScheduledDate != nil {
		fmt.Fprintf(&b, "Scheduled: %s", svc.ScheduledDate.Format("2006-01-02"))
		if svc.ScheduledTime != nil {
			fmt.Fprintf(&b, " %s", *svc.ScheduledTime)
		}
		b.WriteString("\n")
	}
	if svc.Address != nil {
		fmt.Fprintf(&b, "Address: %s\n", *svc.Address)
	}
	if svc.Description != nil {
		fmt.Fprintf(&b, "\n%s\n", *svc.Description)
	}
	fmt.Fprintf(&b, "\nReference: %s\n", svc.ID)
	return b.String()
}
