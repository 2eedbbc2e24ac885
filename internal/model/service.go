package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceStatus string

const (
	ServiceStatusPending    ServiceStatus = "PENDING"
	ServiceStatusInProgress ServiceStatus = "IN_PROGRESS"
	ServiceStatusCompleted  ServiceStatus = "COMPLETED"
	ServiceStatusCancelled  ServiceStatus = "CANCELLED"
	ServiceStatusClosed     ServiceStatus = "CLOSED"
)

var serviceTransitions = map[ServiceStatus][]ServiceStatus{
	ServiceStatusPending:    {ServiceStatusInProgress, ServiceStatusCancelled},
	ServiceStatusInProgress: {ServiceStatusCompleted, ServiceStatusPending, ServiceStatusCancelled},
	ServiceStatusCompleted:  {ServiceStatusInProgress, ServiceStatusClosed},
}

func (s ServiceStatus) Valid() bool {
	switch s {
	case ServiceStatusPending, ServiceStatusInProgress, ServiceStatusCompleted,
		ServiceStatusCancelled, ServiceStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s ServiceStatus) Terminal() bool {
	return s == ServiceStatusClosed || s == ServiceStatusCancelled
}

func (s ServiceStatus) CanTransitionTo(next ServiceStatus) bool {
	for _, allowed := range serviceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Service is a single field job assigned to a technician
type Service struct {
	Base
	Title          string              `json:"title" db:"title"`
	Description    *string             `json:"description,omitempty" db:"description"`
	Status         ServiceStatus       `json:"status" db:"status"`
	ScheduledDate  *time.Time          `json:"scheduled_date,omitempty" db:"scheduled_date"`
	ScheduledTime  *string             `json:"scheduled_time,omitempty" db:"scheduled_time"`
	Address        *string             `json:"address,omitempty" db:"address"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	ClosedAt       *time.Time          `json:"closed_at,omitempty" db:"closed_at"`
	Notes          *string             `json:"notes,omitempty" db:"notes"`
	ExpectedAmount decimal.NullDecimal `json:"expected_amount" db:"expected_amount"`
	IsLocked       bool                `json:"is_locked" db:"is_locked"`
	TechnicianID   *uuid.UUID          `json:"technician_id,omitempty" db:"technician_id"`
	ClientID       *uuid.UUID          `json:"client_id,omitempty" db:"client_id"`
	CreatedByID    uuid.UUID           `json:"created_by_id" db:"created_by_id"`
	ClosedByID     *uuid.UUID          `json:"closed_by_id,omitempty" db:"closed_by_id"`
	CategoryID     *uuid.UUID          `json:"category_id,omitempty" db:"category_id"`
}

// AssignedTo reports whether userID is the technician of the service
func (s *Service) AssignedTo(userID uuid.UUID) bool {
	return s.TechnicianID != nil && *s.TechnicianID == userID
}

// VisibleTo reports whether the actor may read the service
func (s *Service) VisibleTo(actor Actor) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleTechnician:
		return s.AssignedTo(actor.ID)
	}
	return false
}

// Editable reports whether the service content may still change
func (s *Service) Editable() bool {
	return !s.IsLocked && !s.Status.Terminal()
}

// ServiceDetails is a service together with its related records
type ServiceDetails struct {
	*Service
	Technician *UserSummary     `json:"technician,omitempty"`
	Client     *Client          `json:"client,omitempty"`
	Category   *ServiceCategory `json:"category,omitempty"`
	CreatedBy  *UserSummary     `json:"created_by,omitempty"`
	ClosedBy   *UserSummary     `json:"closed_by,omitempty"`
	Payment    *Payment         `json:"payment,omitempty"`
	Report     *ReportDetails   `json:"report,omitempty"`
}

type CreateServiceRequest struct {
	Title          string           `json:"title" binding:"required,max=200"`
	Description    *string          `json:"description"`
	ScheduledDate  *time.Time       `json:"scheduled_date"`
	ScheduledTime  *string          `json:"scheduled_time" binding:"omitempty,time_hhmm"`
	Address        *string          `json:"address" binding:"omitempty,max=500"`
	Notes          *string          `json:"notes"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount" binding:"omitempty,gte=0,lte=9999999999.99"`
	TechnicianID   *uuid.UUID       `json:"technician_id"`
	ClientID       *uuid.UUID       `json:"client_id"`
	CategoryID     *uuid.UUID       `json:"category_id"`
}

// UpdateServiceRequest applies a partial update. Clear* flags unset the
// optional relations since a JSON null cannot be told apart from absence.
type UpdateServiceRequest struct {
	Title           *string          `json:"title" binding:"omitempty,min=1,max=200"`
	Description     *string          `json:"description"`
	ScheduledDate   *time.Time       `json:"scheduled_date"`
	ScheduledTime   *string          `json:"scheduled_time" binding:"omitempty,time_hhmm"`
	Address         *string          `json:"address" binding:"omitempty,max=500"`
	Notes           *string          `json:"notes"`
	ExpectedAmount  *decimal.Decimal `json:"expected_amount" binding:"omitempty,gte=0,lte=9999999999.99"`
	TechnicianID    *uuid.UUID       `json:"technician_id"`
	ClientID        *uuid.UUID       `json:"client_id"`
	CategoryID      *uuid.UUID       `json:"category_id"`
	ClearTechnician bool             `json:"clear_technician"`
	ClearClient     bool             `json:"clear_client"`
	ClearCategory   bool             `json:"clear_category"`
}

type UpdateStatusRequest struct {
	Status ServiceStatus `json:"status" binding:"required,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
}

type CloseServiceRequest struct {
	Payment *CreatePaymentRequest `json:"payment"`
}

type LockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

type ReassignRequest struct {
	FromTechnicianID uuid.UUID `json:"from_technician_id" binding:"required"`
	ToTechnicianID   uuid.UUID `json:"to_technician_id" binding:"required"`
}

type ReassignResult struct {
	Reassigned int64 `json:"reassigned"`
}

type ServiceFilters struct {
	Pagination
	SortOrder
	Statuses     []ServiceStatus
	TechnicianID *uuid.UUID
	ClientID     *uuid.UUID
	CategoryID   *uuid.UUID
	CreatedByID  *uuid.UUID
	IsLocked     *bool
	Scheduled    DateRange
	Search       string
}
