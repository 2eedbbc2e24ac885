package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatsFilters narrows aggregate queries to a time window and, optionally, a technician
type StatsFilters struct {
	DateRange
	TechnicianID *uuid.UUID
}

type StatusCount struct {
	Status ServiceStatus `json:"status" db:"status"`
	Count  int           `json:"count" db:"count"`
}

type ServiceStats struct {
	Total    int                   `json:"total"`
	ByStatus map[ServiceStatus]int `json:"by_status"`
}

type MethodTotal struct {
	Method PaymentMethod   `json:"method" db:"method"`
	Count  int             `json:"count" db:"count"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

type PaymentSummary struct {
	Count          int             `json:"count" db:"count"`
	DebtorCount    int             `json:"debtor_count" db:"debtor_count"`
	AmountPaid     decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	SparePartsCost decimal.Decimal `json:"spare_parts_cost" db:"spare_parts_cost"`
	DebtAmount     decimal.Decimal `json:"debt_amount" db:"debt_amount"`
}

type PaymentStats struct {
	PaymentSummary
	ByMethod []MethodTotal `json:"by_method"`
}

type TechnicianStats struct {
	TechnicianID uuid.UUID       `json:"technician_id" db:"technician_id"`
	Name         string          `json:"name" db:"name"`
	Assigned     int             `json:"assigned" db:"assigned"`
	Completed    int             `json:"completed" db:"completed"`
	Closed       int             `json:"closed" db:"closed"`
	Collected    decimal.Decimal `json:"collected" db:"collected"`
}
