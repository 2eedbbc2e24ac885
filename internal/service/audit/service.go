package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Log records an audit entry for a completed operation. The client address and
// user agent come from the request metadata carried by ctx. Failures are logged
// and never returned, an operation that already committed is not undone by its
// audit trail.
func (s *Service) Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, changes interface{}) {
	entry := &model.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if actor.ID != uuid.Nil {
		userID := actor.ID
		entry.UserID = &userID
	}

	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Error().Err(err).Str("entity_type", entityType).Msg("Failed to encode audit changes")
		} else {
			entry.Changes = data
		}
	}

	meta := model.RequestMetaFrom(ctx)
	entry.IPAddress = meta.IPAddress
	entry.UserAgent = meta.UserAgent

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().
			Err(err).
			Str("request_id", meta.RequestID).
			Str("action", action).
			Str("entity_type", entityType).
			Str("entity_id", entityID.String()).
			Msg("Failed to write audit log")
	}
}

func (s *Service) List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, int, error) {
	return s.repo.List(ctx, filters)
}
