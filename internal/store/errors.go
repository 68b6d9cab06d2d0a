package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound means a lookup that expects exactly one row found none.
	ErrNotFound = errors.New("record not found")
	// ErrMultipleFound means a lookup that expects exactly one row found several.
	ErrMultipleFound = errors.New("multiple records found")
	// ErrSchemaMissing means the consultation tables do not exist in the database.
	ErrSchemaMissing = errors.New("consultation schema missing")
	// ErrUnmanagedSchema means the consultation tables exist but were not
	// created by ApplyMigrations, which is the case for the application database.
	ErrUnmanagedSchema = errors.New("consultation schema exists without schema_migrations")
)

// LookupError describes which single-row lookup failed.
type LookupError struct {
	Entity   string
	Criteria string
	Err      error
}

func (e *LookupError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s where %s: %v", e.Entity, e.Criteria, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func lookupError(entity, criteria string, err error) *LookupError {
	return &LookupError{Entity: entity, Criteria: criteria, Err: err}
}

const pgUndefinedTable = "42P01"

// classify maps driver errors onto the package sentinels where one applies.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, pgErr.Message)
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
	}
	return err
}
