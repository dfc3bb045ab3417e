// Package repository provides the query helpers and transaction plumbing
// shared by the Postgres stores.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JaimeStill/civic/pkg/pagination"
)

// Querier is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc converts one row into an entity.
type ScanFunc[T any] func(Scanner) (T, error)

// PageBuilder produces a count statement and a page statement over the
// same conditions. *query.Builder satisfies it.
type PageBuilder interface {
	BuildCount() (string, []any)
	BuildPage(page, pageSize int) (string, []any)
}

func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany returns an empty, non-nil slice when nothing matches.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	return results, rows.Err()
}

// QueryPage counts every match, then scans the requested page. entity
// names the rows in error messages.
func QueryPage[T any](
	ctx context.Context,
	q Querier,
	pb PageBuilder,
	page pagination.PageRequest,
	entity string,
	scan ScanFunc[T],
) (*pagination.PageResult[T], error) {
	countSQL, countArgs := pb.BuildCount()
	var total int
	if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", entity, err)
	}

	pageSQL, pageArgs := pb.BuildPage(page.Page, page.PageSize)
	items, err := QueryMany(ctx, q, pageSQL, pageArgs, scan)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

// ExecExpectOne returns sql.ErrNoRows when the statement matched nothing,
// which is how conditional updates report a lost race.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
