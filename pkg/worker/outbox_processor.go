package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	if c.BatchSize <= 0 {
		return errors.New("BatchSize must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return errors.New("PollInterval must be greater than 0")
	}
	if c.RetryAttempts <= 0 {
		return errors.New("RetryAttempts must be greater than 0")
	}
	if c.RetryDelay <= 0 {
		return errors.New("RetryDelay must be greater than 0")
	}
	return nil
}

// OutboxProcessor relays outbox rows to the message broker. A failed publish
// is retried on later polls with a linear backoff until RetryAttempts is spent.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	channel string
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	channel string,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if channel == "" {
		return nil, errors.New("channel must not be empty")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		channel: channel,
		config:  config,
		logger:  logger.With("outbox_processor"),
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "channel", p.channel)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were delivered
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPending(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"retry_count", event.RetryCount)
			continue
		}
		delivered++
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.OutboxQueueSize.Set(float64(pending))
	}

	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	msg := messaging.Message{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    json.RawMessage(event.Payload),
		OccurredAt: event.CreatedAt,
	}

	if err := p.broker.Publish(ctx, p.channel, msg); err != nil {
		p.handleFailure(ctx, event, err)
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}
	return nil
}

func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, cause error) {
	attempts := event.RetryCount + 1
	if attempts >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, cause.Error(), attempts); err != nil {
			p.logger.Error(err, "Failed to mark event as failed", "event_id", event.ID.String())
		}
		return
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(attempts))
	if err := p.repo.MarkRetry(ctx, event.ID, cause.Error(), attempts, retryAt); err != nil {
		p.logger.Error(err, "Failed to schedule event retry", "event_id", event.ID.String())
	}
}
