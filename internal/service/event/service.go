package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

// Service writes domain events to the outbox. Publishing is left to the
// outbox processor of the worker process.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

// Record stores an event. Called with a transactional ctx, the event is
// committed or rolled back together with the change it describes.
func (s *Service) Record(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}
