package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStateUniqueViolation is the SQLSTATE raised by a duplicate key.
const sqlStateUniqueViolation = "23505"

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// storeErr maps a driver error for op onto the fieldwork sentinels. A
// missing row becomes notFound and a duplicate key becomes exists; pass nil
// for a case the statement cannot produce.
func storeErr(op string, err, notFound, exists error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case notFound != nil && isNoRows(err):
		return notFound
	case exists != nil && errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation:
		return exists
	}
	return fmt.Errorf("fieldwork/postgres: %s: %w", op, err)
}
