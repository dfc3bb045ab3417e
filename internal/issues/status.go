package issues

import (
	"fmt"
	"slices"

	"github.com/JaimeStill/civic/internal/jurisdictions"
)

// Status is the lifecycle state of an issue.
type Status string

const (
	Open              Status = "OPEN"
	Responded         Status = "RESPONDED"
	Verified          Status = "VERIFIED"
	NeedsManualReview Status = "NEEDS_MANUAL_REVIEW"
	Disputed          Status = "DISPUTED"
)

var Statuses = []Status{Open, Responded, Verified, NeedsManualReview, Disputed}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Action is a lifecycle event that moves an issue between statuses.
type Action string

const (
	ActionRespond Action = "respond"
	ActionVerify  Action = "verify"
	ActionReview  Action = "review"
	ActionDispute Action = "dispute"
)

type transition struct {
	from []Status
	to   Status
}

// transitions is the complete table. Nothing leaves VERIFIED except a dispute.
var transitions = map[Action]transition{
	ActionRespond: {from: []Status{Open, Disputed}, to: Responded},
	ActionVerify:  {from: []Status{Responded}, to: Verified},
	ActionReview:  {from: []Status{Responded}, to: NeedsManualReview},
	ActionDispute: {from: []Status{Verified, NeedsManualReview}, to: Disputed},
}

// Next returns the status that a leads to from current. A disallowed
// transition is an ErrStateConflict naming the current status.
func Next(current Status, a Action) (Status, error) {
	t, ok := transitions[a]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrValidation, a)
	}
	if !slices.Contains(t.from, current) {
		return "", fmt.Errorf("%w: %s not allowed while issue is %s", ErrStateConflict, a, current)
	}
	return t.to, nil
}

// countsDelta moves one issue from one status counter to another.
func countsDelta(from, to Status) jurisdictions.Counts {
	var d jurisdictions.Counts
	bump(&d, from, -1)
	bump(&d, to, 1)
	return d
}

func bump(d *jurisdictions.Counts, s Status, n int) {
	switch s {
	case Open:
		d.Open += n
	case Responded:
		d.Responded += n
	case Verified:
		d.Verified += n
	case NeedsManualReview:
		d.Review += n
	case Disputed:
		d.Disputed += n
	}
}
