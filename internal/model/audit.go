package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id" db:"entity_id"`
	Changes    RawJSON    `json:"changes,omitempty" db:"changes"`
	IPAddress  string     `json:"ip_address" db:"ip_address"`
	UserAgent  string     `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionLogin  = "login"
	AuditActionStatus = "status_change"
	AuditActionClose  = "close"
	AuditActionLock   = "lock"
	AuditActionUnlock = "unlock"

	// Entity types
	AuditEntityUser     = "user"
	AuditEntityClient   = "client"
	AuditEntityCategory = "category"
	AuditEntityService  = "service"
	AuditEntityReport   = "report"
	AuditEntityPayment  = "payment"
)

type AuditFilters struct {
	Pagination
	UserID     *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Action     string
}
