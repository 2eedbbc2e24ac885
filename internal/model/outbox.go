package model

import (
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusRetry     OutboxStatus = "RETRY"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Event types written to the outbox
const (
	EventServiceCreated       = "service.created"
	EventServiceUpdated       = "service.updated"
	EventServiceAssigned      = "service.assigned"
	EventServiceStatusChanged = "service.status_changed"
	EventServiceClosed        = "service.closed"
	EventServiceLockChanged   = "service.lock_changed"
	EventServiceDeleted       = "service.deleted"
	EventServicesReassigned   = "service.reassigned"
	EventReportUpdated        = "report.updated"
	EventPaymentRecorded      = "payment.recorded"
	EventPaymentUpdated       = "payment.updated"
	EventPaymentDeleted       = "payment.deleted"
)

type OutboxEvent struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	EventType    string       `db:"event_type" json:"event_type"`
	Payload      RawJSON      `db:"payload" json:"payload"`
	Status       OutboxStatus `db:"status" json:"status"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int          `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time   `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// ServiceEventPayload is the payload of every service.* and report.* event
type ServiceEventPayload struct {
	ServiceID    uuid.UUID     `json:"service_id"`
	Title        string        `json:"title"`
	Status       ServiceStatus `json:"status"`
	TechnicianID *uuid.UUID    `json:"technician_id,omitempty"`
	ActorID      uuid.UUID     `json:"actor_id"`
	FromStatus   ServiceStatus `json:"from_status,omitempty"`
}

func NewServiceEventPayload(s *Service, actor Actor) ServiceEventPayload {
	return ServiceEventPayload{
		ServiceID:    s.ID,
		Title:        s.Title,
		Status:       s.Status,
		TechnicianID: s.TechnicianID,
		ActorID:      actor.ID,
	}
}

type PaymentEventPayload struct {
	PaymentID    uuid.UUID     `json:"payment_id"`
	ServiceID    uuid.UUID     `json:"service_id"`
	TechnicianID *uuid.UUID    `json:"technician_id,omitempty"`
	Method       PaymentMethod `json:"method"`
	AmountPaid   string        `json:"amount_paid"`
	DebtAmount   string        `json:"debt_amount"`
	ActorID      uuid.UUID     `json:"actor_id"`
}

func NewPaymentEventPayload(p *Payment, actor Actor) PaymentEventPayload {
	techID := p.TechnicianID
	return PaymentEventPayload{
		PaymentID:    p.ID,
		ServiceID:    p.ServiceID,
		TechnicianID: &techID,
		Method:       p.Method,
		AmountPaid:   p.AmountPaid.StringFixed(2),
		DebtAmount:   p.DebtAmount.StringFixed(2),
		ActorID:      actor.ID,
	}
}
