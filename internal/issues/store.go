package issues

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
)

// Store persists issues and responses. Writes join the unit of work carried by ctx.
type Store interface {
	Insert(ctx context.Context, issue Issue) (*Issue, error)
	Find(ctx context.Context, id uuid.UUID) (*Issue, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Issue], error)
	// Transition sets the status to `to` only while it is still `from`.
	// A lost race is ErrStateConflict.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Issue, error)
	// FlagFollowUp marks a RESPONDED issue for manual follow-up. Issues in
	// any other status are left unchanged.
	FlagFollowUp(ctx context.Context, id uuid.UUID) error
	// Aged lists issues in status created at or before cutoff, oldest first.
	Aged(ctx context.Context, status Status, cutoff time.Time) ([]Issue, error)

	// InsertResponse fails with ErrStateConflict when the issue already has
	// a pending response.
	InsertResponse(ctx context.Context, r Response) (*Response, error)
	FindResponse(ctx context.Context, id uuid.UUID) (*Response, error)
	// Responses lists an issue's responses oldest first.
	Responses(ctx context.Context, issueID uuid.UUID) ([]Response, error)
	// RecordOutcome writes the outcome only while the response is pending.
	RecordOutcome(ctx context.Context, id uuid.UUID, o Outcome, status VerificationStatus, points int64) (*Response, error)
}
