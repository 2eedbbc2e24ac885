package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/fieldservice-api/internal/model"
)

// Transactor runs fn inside a database transaction. Repository calls made with
// the context handed to fn join that transaction; nested calls reuse it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters model.UserFilters) ([]*model.User, int, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	CreateMany(ctx context.Context, clients []*model.Client) error
	Get(ctx context.Context, id uuid.UUID) (*model.Client, error)
	Update(ctx context.Context, client *model.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters model.ClientFilters) ([]*model.Client, int, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *model.ServiceCategory) error
	Get(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error)
	GetByName(ctx context.Context, name string) (*model.ServiceCategory, error)
	Update(ctx context.Context, category *model.ServiceCategory) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters model.CategoryFilters) ([]*model.ServiceCategory, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, service *model.Service) error
	Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
	Update(ctx context.Context, service *model.Service) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters model.ServiceFilters) ([]*model.Service, int, error)
	// ReassignTechnician moves every open service of one technician to another
	ReassignTechnician(ctx context.Context, from, to uuid.UUID) (int64, error)
	CountByStatus(ctx context.Context, filters model.StatsFilters) ([]model.StatusCount, error)
	TechnicianStats(ctx context.Context, filters model.StatsFilters) ([]model.TechnicianStats, error)
}

type ReportRepository interface {
	Upsert(ctx context.Context, report *model.ServiceReport) error
	GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*model.ServiceReport, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AddPhoto appends after the existing photos when DisplayOrder is negative
	AddPhoto(ctx context.Context, photo *model.ServicePhoto) error
	ListPhotos(ctx context.Context, reportID uuid.UUID) ([]*model.ServicePhoto, error)
	DeletePhoto(ctx context.Context, reportID, photoID uuid.UUID) error
	DeletePhotos(ctx context.Context, reportID uuid.UUID) (int64, error)

	AddSpareParts(ctx context.Context, parts []*model.SparePart) error
	ListSpareParts(ctx context.Context, reportID uuid.UUID) ([]*model.SparePart, error)
	DeleteSparePart(ctx context.Context, reportID, partID uuid.UUID) error
	SparePartsTotal(ctx context.Context, reportID uuid.UUID) (decimal.Decimal, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*model.Payment, error)
	Update(ctx context.Context, payment *model.Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters model.PaymentFilters) ([]*model.Payment, int, error)
	Summary(ctx context.Context, filters model.StatsFilters) (*model.PaymentSummary, error)
	TotalsByMethod(ctx context.Context, filters model.StatsFilters) ([]model.MethodTotal, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	CountPending(ctx context.Context) (int, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryCount int, retryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filters model.AuditFilters) ([]*model.AuditLog, int, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}
