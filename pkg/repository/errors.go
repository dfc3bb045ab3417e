package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// MapError turns sql.ErrNoRows into notFound and a unique violation into
// duplicate. Anything else is returned as is.
func MapError(err error, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case IsUniqueViolation(err):
		return duplicate
	}
	return err
}

func IsUniqueViolation(err error) bool     { return sqlState(err) == codeUniqueViolation }
func IsForeignKeyViolation(err error) bool { return sqlState(err) == codeForeignKeyViolation }

// CheckViolation wraps invalid with the violated constraint's name, or
// returns nil when err is not a CHECK failure.
func CheckViolation(err error, invalid error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeCheckViolation {
		return nil
	}
	return fmt.Errorf("%w: violates %s", invalid, pgErr.ConstraintName)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
