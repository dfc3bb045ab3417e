package jurisdictions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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

func (s *PostgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Jurisdiction], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "District", "City")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	return s.page(ctx, qb, page)
}

func (s *PostgresStore) Ranked(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Jurisdiction], error) {
	suspended := false
	qb := query.
		NewBuilder(projection, rankedSort...).
		WhereEquals("LedgerSuspended", &suspended)

	filters.Apply(qb)

	return s.page(ctx, qb, page)
}

func (s *PostgresStore) page(
	ctx context.Context,
	qb *query.Builder,
	page pagination.PageRequest,
) (*pagination.PageResult[Jurisdiction], error) {
	return repository.QueryPage(ctx, repository.Conn(ctx, s.db), qb, page, "jurisdictions", scanJurisdiction)
}

func (s *PostgresStore) Find(ctx context.Context, id uuid.UUID) (*Jurisdiction, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanJurisdiction)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (s *PostgresStore) Lock(ctx context.Context, id uuid.UUID) (*Jurisdiction, error) {
	q, args := query.NewBuilder(projection).BuildSingleForUpdate("ID", id)

	j, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanJurisdiction)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) ([]Jurisdiction, error) {
	q, args := query.NewBuilder(projection, query.SortField{Field: "ID"}).Build()

	items, err := repository.QueryMany(ctx, repository.Conn(ctx, s.db), q, args, scanJurisdiction)
	if err != nil {
		return nil, fmt.Errorf("snapshot jurisdictions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Insert(ctx context.Context, j Jurisdiction) (*Jurisdiction, error) {
	q := fmt.Sprintf(`
		INSERT INTO jurisdictions(id, name, type, state, district, city, bound_north, bound_south, bound_east, bound_west, score)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11)
		RETURNING %s`, returning)

	var north, south, east, west *float64
	if j.Bounds != nil {
		north, south, east, west = &j.Bounds.North, &j.Bounds.South, &j.Bounds.East, &j.Bounds.West
	}

	args := []any{j.ID, j.Name, j.Type, j.State, j.District, j.City, north, south, east, west, j.Score}

	created, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanJurisdiction)
	if err != nil {
		if invalid := repository.CheckViolation(err, ErrInvalid); invalid != nil {
			return nil, invalid
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &created, nil
}

func (s *PostgresStore) Rank(ctx context.Context, j *Jurisdiction) (int, error) {
	const q = `
		SELECT COUNT(*) + 1 FROM jurisdictions
		WHERE NOT ledger_suspended AND (score > $1 OR (score = $1 AND id < $2))`

	var rank int
	if err := repository.Conn(ctx, s.db).QueryRowContext(ctx, q, j.Score, j.ID).Scan(&rank); err != nil {
		return 0, fmt.Errorf("rank jurisdiction: %w", err)
	}
	return rank, nil
}

func (s *PostgresStore) AdjustCounts(ctx context.Context, id uuid.UUID, d Counts) error {
	if d.IsZero() {
		return nil
	}

	const q = `
		UPDATE jurisdictions SET
			issues_received = issues_received + $2,
			open_count = open_count + $3,
			responded_count = responded_count + $4,
			verified_count = verified_count + $5,
			review_count = review_count + $6,
			disputed_count = disputed_count + $7,
			updated_at = NOW()
		WHERE id = $1`

	err := repository.ExecExpectOne(ctx, repository.Conn(ctx, s.db), q,
		id, d.Received, d.Open, d.Responded, d.Verified, d.Review, d.Disputed)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *PostgresStore) ApplyScore(ctx context.Context, id uuid.UUID, delta int64, resolved bool) error {
	const q = `
		UPDATE jurisdictions SET
			score = score + $2,
			issues_resolved = issues_resolved + CASE WHEN $3 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1`

	err := repository.ExecExpectOne(ctx, repository.Conn(ctx, s.db), q, id, delta, resolved)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *PostgresStore) SetScore(ctx context.Context, id uuid.UUID, score int64) error {
	err := repository.ExecExpectOne(ctx, repository.Conn(ctx, s.db),
		"UPDATE jurisdictions SET score = $2, updated_at = NOW() WHERE id = $1", id, score)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (s *PostgresStore) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	err := repository.ExecExpectOne(ctx, repository.Conn(ctx, s.db),
		"UPDATE jurisdictions SET ledger_suspended = $2, updated_at = NOW() WHERE id = $1", id, suspended)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

// Activity reads the issues table directly; both tables live in one database.
func (s *PostgresStore) Activity(ctx context.Context, id uuid.UUID, since time.Time) (Activity, error) {
	db := repository.Conn(ctx, s.db)
	a := Activity{
		IssuesByType: make(map[string]int),
		Monthly:      make(map[string]int),
	}

	rows, err := db.QueryContext(ctx,
		"SELECT issue_type, COUNT(*) FROM issues WHERE jurisdiction_id = $1 GROUP BY issue_type", id)
	if err != nil {
		return a, fmt.Errorf("issues by type: %w", err)
	}
	if err := collectCounts(rows, a.IssuesByType); err != nil {
		return a, fmt.Errorf("issues by type: %w", err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM'), COUNT(*)
		FROM issues WHERE jurisdiction_id = $1 AND created_at >= $2
		GROUP BY 1`, id, since)
	if err != nil {
		return a, fmt.Errorf("monthly intake: %w", err)
	}
	if err := collectCounts(rows, a.Monthly); err != nil {
		return a, fmt.Errorf("monthly intake: %w", err)
	}

	var avgSeconds sql.NullFloat64
	err = db.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))
		FROM issues WHERE jurisdiction_id = $1 AND resolved_at IS NOT NULL`, id).Scan(&avgSeconds)
	if err != nil {
		return a, fmt.Errorf("resolution duration: %w", err)
	}
	if avgSeconds.Valid {
		d := time.Duration(avgSeconds.Float64 * float64(time.Second))
		a.ResolutionDuration = &d
	}

	return a, nil
}

func collectCounts(rows *sql.Rows, into map[string]int) error {
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

const returning = `id, name, type, state, district, city, bound_north, bound_south, bound_east, bound_west,
		score, issues_received, issues_resolved, open_count, responded_count, verified_count,
		review_count, disputed_count, ledger_suspended, created_at, updated_at`
