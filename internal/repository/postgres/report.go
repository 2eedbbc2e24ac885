package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const (
	reportColumns    = `id, service_id, final_report, created_at, updated_at`
	photoColumns     = `id, report_id, url, technical_notes, display_order, created_at`
	sparePartColumns = `id, report_id, name, quantity, unit_price, total_price, notes, created_at`
)

type reportRepository struct {
	BaseRepository
}

func NewReportRepository(base BaseRepository) repository.ReportRepository {
	return &reportRepository{base}
}

// Upsert creates the report of a service or replaces its content
func (r *reportRepository) Upsert(ctx context.Context, report *model.ServiceReport) error {
	query := `
		INSERT INTO service_reports (` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (service_id) DO UPDATE SET
			final_report = excluded.final_report,
			updated_at = excluded.updated_at
	`

	ts := now()
	_, err := r.exec(ctx, query, uuid.New(), report.ServiceID, report.FinalReport, ts, ts)
	if err != nil {
		return mapError(fmt.Errorf("failed to upsert report: %w", err), "report")
	}

	stored, err := r.GetByServiceID(ctx, report.ServiceID)
	if err != nil {
		return err
	}
	*report = *stored
	return nil
}

func (r *reportRepository) GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*model.ServiceReport, error) {
	var report model.ServiceReport
	query := `SELECT ` + reportColumns + ` FROM service_reports WHERE service_id = ?`
	if err := r.get(ctx, &report, query, serviceID); err != nil {
		return nil, mapError(err, "report")
	}
	return &report, nil
}

func (r *reportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "report", `DELETE FROM service_reports WHERE id = ?`, id)
}

// AddPhoto stores a photo. A negative display order places it after the
// existing photos of the report.
func (r *reportRepository) AddPhoto(ctx context.Context, photo *model.ServicePhoto) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		if photo.DisplayOrder < 0 {
			query := `SELECT COALESCE(MAX(display_order), -1) + 1 FROM service_photos WHERE report_id = ?`
			if err := r.get(ctx, &photo.DisplayOrder, query, photo.ReportID); err != nil {
				return fmt.Errorf("failed to compute photo order: %w", err)
			}
		}

		if photo.ID == uuid.Nil {
			photo.ID = uuid.New()
		}
		photo.CreatedAt = now()

		query := `INSERT INTO service_photos (` + photoColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
		_, err := r.exec(ctx, query,
			photo.ID,
			photo.ReportID,
			photo.URL,
			photo.TechnicalNotes,
			photo.DisplayOrder,
			photo.CreatedAt,
		)
		if err != nil {
			return mapError(fmt.Errorf("failed to add photo: %w", err), "photo")
		}
		return nil
	})
}

func (r *reportRepository) ListPhotos(ctx context.Context, reportID uuid.UUID) ([]*model.ServicePhoto, error) {
	query := `SELECT ` + photoColumns + ` FROM service_photos WHERE report_id = ?
		ORDER BY display_order ASC, created_at ASC, id ASC`

	photos := []*model.ServicePhoto{}
	if err := r.selectAll(ctx, &photos, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

func (r *reportRepository) DeletePhoto(ctx context.Context, reportID, photoID uuid.UUID) error {
	return r.execOne(ctx, "photo", `DELETE FROM service_photos WHERE id = ? AND report_id = ?`, photoID, reportID)
}

func (r *reportRepository) DeletePhotos(ctx context.Context, reportID uuid.UUID) (int64, error) {
	result, err := r.exec(ctx, `DELETE FROM service_photos WHERE report_id = ?`, reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete photos: %w", err)
	}
	return result.RowsAffected()
}

// AddSpareParts inserts the parts in one transaction, computing each line total
func (r *reportRepository) AddSpareParts(ctx context.Context, parts []*model.SparePart) error {
	query := `INSERT INTO spare_parts (` + sparePartColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	return r.WithTx(ctx, func(ctx context.Context) error {
		ts := now()
		for _, part := range parts {
			if part.ID == uuid.Nil {
				part.ID = uuid.New()
			}
			part.UnitPrice = part.UnitPrice.Round(2)
			part.TotalPrice = model.LineTotal(part.Quantity, part.UnitPrice)
			part.CreatedAt = ts

			_, err := r.exec(ctx, query,
				part.ID,
				part.ReportID,
				part.Name,
				part.Quantity,
				part.UnitPrice,
				part.TotalPrice,
				part.Notes,
				part.CreatedAt,
			)
			if err != nil {
				return mapError(fmt.Errorf("failed to add spare part %q: %w", part.Name, err), "spare part")
			}
		}
		return nil
	})
}

func (r *reportRepository) ListSpareParts(ctx context.Context, reportID uuid.UUID) ([]*model.SparePart, error) {
	query := `SELECT ` + sparePartColumns + ` FROM spare_parts WHERE report_id = ?
		ORDER BY created_at ASC, name ASC, id ASC`

	parts := []*model.SparePart{}
	if err := r.selectAll(ctx, &parts, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list spare parts: %w", err)
	}
	return parts, nil
}

func (r *reportRepository) DeleteSparePart(ctx context.Context, reportID, partID uuid.UUID) error {
	return r.execOne(ctx, "spare part", `DELETE FROM spare_parts WHERE id = ? AND report_id = ?`, partID, reportID)
}

func (r *reportRepository) SparePartsTotal(ctx context.Context, reportID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(total_price), 0) FROM spare_parts WHERE report_id = ?`
	if err := r.get(ctx, &total, query, reportID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum spare parts: %w", err)
	}
	return total.Round(2), nil
}
