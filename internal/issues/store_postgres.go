package issues

import (
	"context"
	"database/sql"
	"errors"
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

func (s *PostgresStore) Insert(ctx context.Context, i Issue) (*Issue, error) {
	q := fmt.Sprintf(`
		INSERT INTO issues(
			id, latitude, longitude, address_district, address_state, address_city, formatted_address,
			jurisdiction_id, match_type, match_confidence, issue_type, type_confidence, classifier_model,
			description, image_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15, $16)
		RETURNING %s`, issueColumns)

	var district, state, city, formatted *string
	if a := i.Address; a != nil {
		district, state, city, formatted = nullable(a.District), nullable(a.State), nullable(a.City), nullable(a.FormattedAddress)
	}

	args := []any{
		i.ID, i.Latitude, i.Longitude, district, state, city, formatted,
		i.JurisdictionID, i.MatchType, i.MatchConfidence, i.IssueType, i.TypeConfidence, i.ClassifierModel,
		i.Description, i.ImageKey, i.Status,
	}

	created, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanIssue)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: jurisdiction %s", ErrResolutionFailure, i.JurisdictionID)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrStateConflict)
	}
	return &created, nil
}

func (s *PostgresStore) Find(ctx context.Context, id uuid.UUID) (*Issue, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	i, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanIssue)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrStateConflict)
	}
	return &i, nil
}

func (s *PostgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Issue], error) {
	db := repository.Conn(ctx, s.db)
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Description", "FormattedAddress", "City")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	return repository.QueryPage(ctx, db, qb, page, "issues", scanIssue)
}

func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Issue, error) {
	q := fmt.Sprintf(`
		UPDATE issues SET
			status = $3,
			needs_follow_up = FALSE,
			resolved_at = CASE
				WHEN $3 = 'VERIFIED' THEN NOW()
				WHEN $3 = 'DISPUTED' THEN NULL
				ELSE resolved_at
			END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s`, issueColumns)

	db := repository.Conn(ctx, s.db)
	updated, err := repository.QueryOne(ctx, db, q, []any{id, from, to}, scanIssue)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition issue: %w", err)
	}

	var current Status
	err = db.QueryRowContext(ctx, "SELECT status FROM issues WHERE id = $1", id).Scan(&current)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrStateConflict)
	}
	return nil, fmt.Errorf("%w: issue is %s, expected %s", ErrStateConflict, current, from)
}

func (s *PostgresStore) FlagFollowUp(ctx context.Context, id uuid.UUID) error {
	_, err := repository.Conn(ctx, s.db).ExecContext(ctx,
		"UPDATE issues SET needs_follow_up = TRUE, updated_at = NOW() WHERE id = $1 AND status = 'RESPONDED'", id)
	if err != nil {
		return fmt.Errorf("flag follow-up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Aged(ctx context.Context, status Status, cutoff time.Time) ([]Issue, error) {
	q, args := query.
		NewBuilder(projection, query.SortField{Field: "CreatedAt"}, query.SortField{Field: "ID"}).
		WhereEquals("Status", string(status)).
		WhereBetween("CreatedAt", time.Time{}, cutoff).
		Build()

	items, err := repository.QueryMany(ctx, repository.Conn(ctx, s.db), q, args, scanIssue)
	if err != nil {
		return nil, fmt.Errorf("aged issues: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertResponse(ctx context.Context, r Response) (*Response, error) {
	q := fmt.Sprintf(`
		INSERT INTO responses(id, issue_id, jurisdiction_id, note, image_key, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, responseColumns)

	args := []any{r.ID, r.IssueID, r.JurisdictionID, r.Note, r.ImageKey, r.Status}

	created, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanResponse)
	if err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: issue already has a pending response", ErrStateConflict)
		}
		return nil, fmt.Errorf("insert response: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) FindResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	q, args := query.NewBuilder(responseProjection).BuildSingle("ID", id)

	r, err := repository.QueryOne(ctx, repository.Conn(ctx, s.db), q, args, scanResponse)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrStateConflict)
	}
	return &r, nil
}

func (s *PostgresStore) Responses(ctx context.Context, issueID uuid.UUID) ([]Response, error) {
	q, args := query.
		NewBuilder(responseProjection, query.SortField{Field: "CreatedAt"}, query.SortField{Field: "ID"}).
		WhereEquals("IssueID", issueID).
		Build()

	items, err := repository.QueryMany(ctx, repository.Conn(ctx, s.db), q, args, scanResponse)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RecordOutcome(
	ctx context.Context,
	id uuid.UUID,
	o Outcome,
	status VerificationStatus,
	points int64,
) (*Response, error) {
	q := fmt.Sprintf(`
		UPDATE responses SET
			verification_status = $2,
			similarity_score = $3,
			confidence = $4,
			model_version = $5,
			points_awarded = $6,
			verified_at = NOW()
		WHERE id = $1 AND verification_status = 'PENDING'
		RETURNING %s`, responseColumns)

	db := repository.Conn(ctx, s.db)
	args := []any{id, status, o.SimilarityScore, o.Confidence, o.ModelVersion, points}

	updated, err := repository.QueryOne(ctx, db, q, args, scanResponse)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	var current VerificationStatus
	err = db.QueryRowContext(ctx, "SELECT verification_status FROM responses WHERE id = $1", id).Scan(&current)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrStateConflict)
	}
	return nil, fmt.Errorf("%w: response already %s", ErrStateConflict, current)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const issueColumns = `id, latitude, longitude, address_district, address_state, address_city, formatted_address,
	jurisdiction_id, match_type, match_confidence, issue_type, type_confidence, classifier_model,
	description, image_key, status, needs_follow_up, created_at, updated_at, resolved_at`

const responseColumns = `id, issue_id, jurisdiction_id, note, image_key, verification_status,
	similarity_score, confidence, model_version, points_awarded, created_at, verified_at`
