//go:build !cgo

package postgres

// The sqlite driver needs cgo, without it only postgres errors are mapped.
func classifySQLite(err error) constraintKind {
	return constraintNone
}
