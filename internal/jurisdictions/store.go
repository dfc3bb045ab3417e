package jurisdictions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
)

// Store persists the catalog. Every write is a single atomic statement and
// joins the unit of work carried by ctx.
type Store interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Jurisdiction], error)
	Find(ctx context.Context, id uuid.UUID) (*Jurisdiction, error)
	// Lock reads a jurisdiction and holds its row until the unit of work ends.
	Lock(ctx context.Context, id uuid.UUID) (*Jurisdiction, error)
	// Snapshot returns every jurisdiction ordered by id.
	Snapshot(ctx context.Context) ([]Jurisdiction, error)
	Insert(ctx context.Context, j Jurisdiction) (*Jurisdiction, error)

	// Ranked lists non-suspended jurisdictions by score descending, id ascending.
	Ranked(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Jurisdiction], error)
	// Rank is the 1-based leaderboard position of j among non-suspended jurisdictions.
	Rank(ctx context.Context, j *Jurisdiction) (int, error)

	AdjustCounts(ctx context.Context, id uuid.UUID, delta Counts) error
	// ApplyScore adds delta to the cached score as a single increment.
	ApplyScore(ctx context.Context, id uuid.UUID, delta int64, resolved bool) error
	SetScore(ctx context.Context, id uuid.UUID, score int64) error
	SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error
}

// ActivityReader aggregates issue rows for a jurisdiction.
type ActivityReader interface {
	Activity(ctx context.Context, id uuid.UUID, since time.Time) (Activity, error)
}
