// Package testutil provides an in-memory SQLite database carrying the same
// tables, constraints and delete rules as the postgres migrations.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'TECHNICIAN' CHECK (role IN ('ADMIN', 'TECHNICIAN', 'CLIENT')),
    avatar        TEXT,
    password_hash TEXT NOT NULL,
    phone         TEXT,
    is_active     BOOLEAN NOT NULL DEFAULT 1,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE clients (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT,
    phone      TEXT,
    address    TEXT,
    city       TEXT,
    notes      TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE service_categories (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT,
    color       TEXT,
    icon        TEXT,
    is_active   BOOLEAN NOT NULL DEFAULT 1,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE services (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    description     TEXT,
    status          TEXT NOT NULL DEFAULT 'PENDING'
                    CHECK (status IN ('PENDING', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED', 'CLOSED')),
    scheduled_date  TIMESTAMP,
    scheduled_time  TEXT,
    address         TEXT,
    completed_at    TIMESTAMP,
    closed_at       TIMESTAMP,
    notes           TEXT,
    expected_amount TEXT,
    is_locked       BOOLEAN NOT NULL DEFAULT 0,
    technician_id   TEXT REFERENCES users (id) ON DELETE SET NULL,
    client_id       TEXT REFERENCES clients (id) ON DELETE SET NULL,
    created_by_id   TEXT NOT NULL REFERENCES users (id) ON DELETE RESTRICT,
    closed_by_id    TEXT REFERENCES users (id) ON DELETE SET NULL,
    category_id     TEXT REFERENCES service_categories (id) ON DELETE SET NULL,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE service_reports (
    id           TEXT PRIMARY KEY,
    service_id   TEXT NOT NULL UNIQUE REFERENCES services (id) ON DELETE CASCADE,
    final_report TEXT,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE TABLE service_photos (
    id              TEXT PRIMARY KEY,
    report_id       TEXT NOT NULL REFERENCES service_reports (id) ON DELETE CASCADE,
    url             TEXT NOT NULL,
    technical_notes TEXT,
    display_order   INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL
);

CREATE TABLE spare_parts (
    id          TEXT PRIMARY KEY,
    report_id   TEXT NOT NULL REFERENCES service_reports (id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    unit_price  TEXT NOT NULL,
    total_price TEXT NOT NULL,
    notes       TEXT,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE payments (
    id               TEXT PRIMARY KEY,
    method           TEXT NOT NULL CHECK (method IN ('CASH', 'TRANSFER', 'CARD', 'OTHER')),
    amount_paid      TEXT NOT NULL,
    spare_parts_cost TEXT NOT NULL DEFAULT '0',
    debt_amount      TEXT NOT NULL DEFAULT '0',
    has_debt         BOOLEAN NOT NULL DEFAULT 0,
    notes            TEXT,
    technician_id    TEXT NOT NULL REFERENCES users (id) ON DELETE RESTRICT,
    service_id       TEXT NOT NULL UNIQUE REFERENCES services (id) ON DELETE CASCADE,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
);

CREATE TABLE outbox_events (
    id            TEXT PRIMARY KEY,
    event_type    TEXT NOT NULL,
    payload       TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'PENDING',
    error_message TEXT,
    retry_count   INTEGER NOT NULL DEFAULT 0,
    retry_at      TIMESTAMP,
    created_at    TIMESTAMP NOT NULL,
    processed_at  TIMESTAMP,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE audit_logs (
    id          TEXT PRIMARY KEY,
    user_id     TEXT,
    action      TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    changes     TEXT,
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);
`

// NewDB opens a fresh in-memory database with foreign keys enforced. A single
// connection keeps the in-memory database alive for the whole test.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

// SeedUser inserts an active user and returns its id
func SeedUser(t *testing.T, db *sqlx.DB, role string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO users (id, email, name, role, password_hash, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, id.String()+"@example.com", "User "+id.String()[:8], role, "x", true, now, now,
	)
	require.NoError(t, err)
	return id
}

// SeedClient inserts a client and returns its id
func SeedClient(t *testing.T, db *sqlx.DB, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO clients (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	)
	require.NoError(t, err)
	return id
}

// SeedCategory inserts a category and returns its id
func SeedCategory(t *testing.T, db *sqlx.DB, name string, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO service_categories (id, name, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, active, now, now,
	)
	require.NoError(t, err)
	return id
}

// ServiceSeed describes a service row inserted by SeedService
type ServiceSeed struct {
	Title          string
	Status         string
	TechnicianID   *uuid.UUID
	ClientID       *uuid.UUID
	CreatedByID    uuid.UUID
	ExpectedAmount *decimal.Decimal
	IsLocked       bool
	CreatedAt      time.Time
}

// SeedService inserts a service and returns its id
func SeedService(t *testing.T, db *sqlx.DB, s ServiceSeed) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if s.Title == "" {
		s.Title = "Service " + id.String()[:8]
	}
	if s.Status == "" {
		s.Status = "PENDING"
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	var expected interface{}
	if s.ExpectedAmount != nil {
		expected = s.ExpectedAmount.String()
	}
	_, err := db.Exec(
		`INSERT INTO services (id, title, status, expected_amount, is_locked, technician_id, client_id, created_by_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.Title, s.Status, expected, s.IsLocked, s.TechnicianID, s.ClientID, s.CreatedByID, s.CreatedAt, s.CreatedAt,
	)
	require.NoError(t, err)
	return id
}
