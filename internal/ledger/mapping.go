package ledger

import (
	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/query"
	"github.com/JaimeStill/civic/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "score_events", "e").
	Project("id", "ID").
	Project("jurisdiction_id", "JurisdictionID").
	Project("delta", "Delta").
	Project("reason", "Reason").
	Project("issue_id", "IssueID").
	Project("response_id", "ResponseID").
	Project("idempotency_key", "IdempotencyKey").
	Project("created_at", "CreatedAt")

var newestFirst = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ID", Descending: true},
}

func scanEvent(s repository.Scanner) (ScoreEvent, error) {
	var (
		ev                  ScoreEvent
		issueID, responseID uuid.NullUUID
	)
	err := s.Scan(
		&ev.ID,
		&ev.JurisdictionID,
		&ev.Delta,
		&ev.Reason,
		&issueID,
		&responseID,
		&ev.IdempotencyKey,
		&ev.CreatedAt,
	)
	if err != nil {
		return ev, err
	}
	if issueID.Valid {
		ev.IssueID = &issueID.UUID
	}
	if responseID.Valid {
		ev.ResponseID = &responseID.UUID
	}
	return ev, nil
}
