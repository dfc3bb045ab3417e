package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
)

// Store persists score events. Writes join the unit of work carried by ctx.
type Store interface {
	// Append inserts ev unless its idempotency key already exists, and
	// reports whether it was inserted.
	Append(ctx context.Context, ev ScoreEvent) (bool, error)
	Sum(ctx context.Context, jurisdictionID uuid.UUID) (int64, error)
	// Events lists a jurisdiction's events newest first.
	Events(ctx context.Context, jurisdictionID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[ScoreEvent], error)
}
