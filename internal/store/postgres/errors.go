package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/narvanalabs/lnsync/internal/store"
)

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = store.ErrNotFound

// PersistError is returned when PostgreSQL rejects a read or write.
type PersistError struct {
	// Op names the store operation, e.g. "upserting nodes".
	Op string
	// SQLState is the PostgreSQL error code, empty for connection-level failures.
	SQLState string
	Err      error
}

func newPersistError(op string, err error) *PersistError {
	return &PersistError{Op: op, SQLState: sqlState(err), Err: err}
}

func (e *PersistError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("%s (sqlstate %s): %v", e.Op, e.SQLState, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// sqlState returns the SQLSTATE code of a PostgreSQL server error.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
