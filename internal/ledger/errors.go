package ledger

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = errors.New("jurisdiction not found")
	ErrInvalid  = errors.New("invalid score event")
	// ErrLedgerInconsistency means the cached score diverged from the event
	// sum. The jurisdiction is withheld from ranking until repaired.
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)

func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalid) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrLedgerInconsistency) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
