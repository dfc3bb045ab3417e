// Package ledger keeps the append-only record of score events behind each
// jurisdiction's accountability score, and ranks jurisdictions by it.
//
// A jurisdiction's cached score always equals the configured base plus the
// sum of its events. Post appends an event and applies its delta in one unit
// of work. The delta is applied as an increment in the store, never as a
// read-modify-write.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/jurisdictions"
)

type Reason string

const (
	ReasonVerifiedResolution Reason = "VERIFIED_RESOLUTION"
	ReasonStaleBacklog       Reason = "STALE_BACKLOG_PENALTY"
	ReasonManualAdjustment   Reason = "MANUAL_ADJUSTMENT"
)

var Reasons = []Reason{
	ReasonVerifiedResolution,
	ReasonStaleBacklog,
	ReasonManualAdjustment,
}

func (r Reason) Valid() bool {
	return slices.Contains(Reasons, r)
}

type ScoreEvent struct {
	ID             uuid.UUID  `json:"id"`
	JurisdictionID uuid.UUID  `json:"jurisdiction_id"`
	Delta          int64      `json:"delta"`
	Reason         Reason     `json:"reason"`
	IssueID        *uuid.UUID `json:"issue_id,omitempty"`
	ResponseID     *uuid.UUID `json:"response_id,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PostCommand describes one score event. IdempotencyKey is unique across the
// ledger; posting the same key twice appends nothing the second time.
type PostCommand struct {
	JurisdictionID uuid.UUID  `json:"jurisdiction_id"`
	Delta          int64      `json:"delta"`
	Reason         Reason     `json:"reason"`
	IssueID        *uuid.UUID `json:"issue_id,omitempty"`
	ResponseID     *uuid.UUID `json:"response_id,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
}

func (c *PostCommand) Validate() error {
	c.IdempotencyKey = strings.TrimSpace(c.IdempotencyKey)

	if c.JurisdictionID == uuid.Nil {
		return fmt.Errorf("%w: jurisdiction_id required", ErrInvalid)
	}
	if c.Delta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", ErrInvalid)
	}
	if !c.Reason.Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalid, c.Reason)
	}
	if c.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency_key required", ErrInvalid)
	}
	return nil
}

// ResponseKey is the idempotency key for the award on a verified response.
func ResponseKey(responseID uuid.UUID) string {
	return "response:" + responseID.String()
}

// StaleKey is the idempotency key for the backlog penalty of month n.
func StaleKey(issueID uuid.UUID, month int) string {
	return fmt.Sprintf("stale:%s:%d", issueID, month)
}

// Reconciliation compares the cached score against base plus the event sum.
type Reconciliation struct {
	JurisdictionID uuid.UUID `json:"jurisdiction_id"`
	Cached         int64     `json:"cached"`
	Recomputed     int64     `json:"recomputed"`
	Consistent     bool      `json:"consistent"`
	Suspended      bool      `json:"suspended"`
}

// Entry is one leaderboard row.
type Entry struct {
	Rank           int                `json:"rank"`
	JurisdictionID uuid.UUID          `json:"jurisdiction_id"`
	Name           string             `json:"name"`
	Type           jurisdictions.Type `json:"type"`
	State          string             `json:"state"`
	District       string             `json:"district,omitempty"`
	Score          int64              `json:"score"`
	IssuesReceived int                `json:"issues_received"`
	IssuesResolved int                `json:"issues_resolved"`
	ResolutionRate float64            `json:"resolution_rate"`
}

type Score struct {
	JurisdictionID uuid.UUID `json:"jurisdiction_id"`
	Score          int64     `json:"score"`
}
