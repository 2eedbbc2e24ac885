//go:build cgo

package postgres

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// classifySQLite maps constraint failures of the sqlite driver used by the
// test suite and local runs.
func classifySQLite(err error) constraintKind {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return constraintNone
	}
	switch liteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return constraintUnique
	case sqlite3.ErrConstraintForeignKey:
		return constraintForeignKey
	}
	return constraintNone
}
