package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceReport struct {
	Base
	ServiceID   uuid.UUID `json:"service_id" db:"service_id"`
	FinalReport *string   `json:"final_report,omitempty" db:"final_report"`
}

type ServicePhoto struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ReportID       uuid.UUID `json:"report_id" db:"report_id"`
	URL            string    `json:"url" db:"url"`
	TechnicalNotes *string   `json:"technical_notes,omitempty" db:"technical_notes"`
	DisplayOrder   int       `json:"display_order" db:"display_order"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type SparePart struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ReportID   uuid.UUID       `json:"report_id" db:"report_id"`
	Name       string          `json:"name" db:"name"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
	Notes      *string         `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// LineTotal is quantity times unit price, rounded to cents
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ReportDetails is a report with its photos and spare parts
type ReportDetails struct {
	*ServiceReport
	Photos          []*ServicePhoto `json:"photos"`
	SpareParts      []*SparePart    `json:"spare_parts"`
	SparePartsTotal decimal.Decimal `json:"spare_parts_total"`
}

type UpsertReportRequest struct {
	FinalReport *string `json:"final_report"`
}

type AddPhotoRequest struct {
	URL            string  `json:"url" binding:"required,url,max=2048"`
	TechnicalNotes *string `json:"technical_notes"`
	DisplayOrder   *int    `json:"display_order" binding:"omitempty,gte=0"`
}

type AddSparePartRequest struct {
	Name      string          `json:"name" binding:"required,max=200"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"gte=0,lte=9999999999.99"`
	Notes     *string         `json:"notes"`
}

type AddSparePartsRequest struct {
	Parts []AddSparePartRequest `json:"parts" binding:"required,min=1,max=200,dive"`
}

type DeletedCount struct {
	Deleted int64 `json:"deleted"`
}
