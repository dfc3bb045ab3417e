package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/query"
	"github.com/JaimeStill/civic/pkg/repository"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, ev ScoreEvent) (bool, error) {
	const q = `
		INSERT INTO score_events(id, jurisdiction_id, delta, reason, issue_id, response_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := repository.Conn(ctx, s.db).QueryRowContext(ctx, q,
		ev.ID, ev.JurisdictionID, ev.Delta, ev.Reason, ev.IssueID, ev.ResponseID, ev.IdempotencyKey,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if repository.IsForeignKeyViolation(err) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, ev.JurisdictionID)
	}
	if err != nil {
		return false, fmt.Errorf("append score event: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) Sum(ctx context.Context, jurisdictionID uuid.UUID) (int64, error) {
	var sum int64
	err := repository.Conn(ctx, s.db).QueryRowContext(ctx,
		"SELECT COALESCE(SUM(delta), 0) FROM score_events WHERE jurisdiction_id = $1",
		jurisdictionID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum score events: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) Events(
	ctx context.Context,
	jurisdictionID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[ScoreEvent], error) {
	db := repository.Conn(ctx, s.db)
	qb := query.
		NewBuilder(projection, newestFirst...).
		WhereEquals("JurisdictionID", jurisdictionID)

	return repository.QueryPage(ctx, db, qb, page, "score events", scanEvent)
}
