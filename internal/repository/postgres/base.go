package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqNumericOutOfRange   = "22003"
)

type constraintKind int

const (
	constraintNone constraintKind = iota
	constraintUnique
	constraintForeignKey
	constraintOutOfRange
)

type txKey struct{}

// BaseRepository provides common functionality for all repositories.
// Queries are written with ? placeholders and rebound for the driver in use.
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// NewTransactor returns a Transactor sharing transactions with every repository on db
func NewTransactor(db *sqlx.DB) repository.Transactor {
	base := NewBaseRepository(db)
	return &base
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes fn within a transaction. When ctx already carries a
// transaction fn joins it and commit is left to the outermost caller.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *BaseRepository) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

func (r *BaseRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	q := r.conn(ctx)
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func (r *BaseRepository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	q := r.conn(ctx)
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func (r *BaseRepository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	q := r.conn(ctx)
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row of resource
func (r *BaseRepository) execOne(ctx context.Context, resource, query string, args ...interface{}) error {
	result, err := r.exec(ctx, query, args...)
	if err != nil {
		return mapError(err, resource)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource)
	}
	return nil
}

// mapError translates driver errors into application errors
func mapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource)
	}

	switch classify(err) {
	case constraintUnique:
		return apperrors.Conflict(resource + " already exists").Wrap(err)
	case constraintForeignKey:
		return apperrors.Conflict(resource + " violates a reference to another record").Wrap(err)
	case constraintOutOfRange:
		return apperrors.Validation(resource + " has a value out of range").Wrap(err)
	}
	return err
}

func classify(err error) constraintKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return constraintUnique
		case pqForeignKeyViolation:
			return constraintForeignKey
		case pqNumericOutOfRange:
			return constraintOutOfRange
		}
		return constraintNone
	}
	return classifySQLite(err)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func orderBy(s model.SortOrder, allowed map[string]string, def string) string {
	col, ok := allowed[s.Field]
	if !ok {
		return " ORDER BY " + def
	}
	dir := "ASC"
	if strings.EqualFold(s.Dir, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
