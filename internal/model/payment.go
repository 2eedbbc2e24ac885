package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

type Payment struct {
	Base
	Method         PaymentMethod   `json:"method" db:"method"`
	AmountPaid     decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	SparePartsCost decimal.Decimal `json:"spare_parts_cost" db:"spare_parts_cost"`
	DebtAmount     decimal.Decimal `json:"debt_amount" db:"debt_amount"`
	HasDebt        bool            `json:"has_debt" db:"has_debt"`
	Notes          *string         `json:"notes,omitempty" db:"notes"`
	TechnicianID   uuid.UUID       `json:"technician_id" db:"technician_id"`
	ServiceID      uuid.UUID       `json:"service_id" db:"service_id"`
}

// ApplyDebt sets the outstanding debt from the amount the service was expected
// to bring in. A service without an expected amount never carries debt.
func (p *Payment) ApplyDebt(expected decimal.NullDecimal) {
	debt := decimal.Zero
	if expected.Valid {
		debt = expected.Decimal.Sub(p.AmountPaid)
		if debt.IsNegative() {
			debt = decimal.Zero
		}
	}
	p.DebtAmount = debt.Round(2)
	p.HasDebt = p.DebtAmount.IsPositive()
}

type CreatePaymentRequest struct {
	Method         PaymentMethod    `json:"method" binding:"required,oneof=CASH TRANSFER CARD OTHER"`
	AmountPaid     decimal.Decimal  `json:"amount_paid" binding:"gte=0,lte=9999999999.99"`
	SparePartsCost *decimal.Decimal `json:"spare_parts_cost" binding:"omitempty,gte=0,lte=9999999999.99"`
	Notes          *string          `json:"notes"`
}

type UpdatePaymentRequest struct {
	Method         *PaymentMethod   `json:"method" binding:"omitempty,oneof=CASH TRANSFER CARD OTHER"`
	AmountPaid     *decimal.Decimal `json:"amount_paid" binding:"omitempty,gte=0,lte=9999999999.99"`
	SparePartsCost *decimal.Decimal `json:"spare_parts_cost" binding:"omitempty,gte=0,lte=9999999999.99"`
	Notes          *string          `json:"notes"`
}

type PaymentFilters struct {
	Pagination
	Method       *PaymentMethod
	TechnicianID *uuid.UUID
	HasDebt      *bool
	Created      DateRange
}
