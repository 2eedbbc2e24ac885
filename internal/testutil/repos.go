package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
)

// Repos bundles every repository over one test database
type Repos struct {
	DB         *sqlx.DB
	Tx         repository.Transactor
	Users      repository.UserRepository
	Clients    repository.ClientRepository
	Categories repository.CategoryRepository
	Services   repository.ServiceRepository
	Reports    repository.ReportRepository
	Payments   repository.PaymentRepository
	Outbox     repository.OutboxRepository
	Audit      repository.AuditRepository
}

func NewRepos(t *testing.T) *Repos {
	t.Helper()
	db := NewDB(t)
	base := postgres.NewBaseRepository(db)

	return &Repos{
		DB:         db,
		Tx:         postgres.NewTransactor(db),
		Users:      postgres.NewUserRepository(base),
		Clients:    postgres.NewClientRepository(base),
		Categories: postgres.NewCategoryRepository(base),
		Services:   postgres.NewServiceRepository(base),
		Reports:    postgres.NewReportRepository(base),
		Payments:   postgres.NewPaymentRepository(base),
		Outbox:     postgres.NewOutboxRepository(base),
		Audit:      postgres.NewAuditRepository(base),
	}
}
