package issues

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/pkg/pagination"
)

// MemoryStore keeps issues and responses in process. It also serves
// jurisdiction statistics through the Activity method.
type MemoryStore struct {
	mu        sync.RWMutex
	issues    map[uuid.UUID]*Issue
	responses map[uuid.UUID]*Response
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:    make(map[uuid.UUID]*Issue),
		responses: make(map[uuid.UUID]*Response),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Insert(ctx context.Context, issue Issue) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[issue.ID]; ok {
		return nil, fmt.Errorf("%w: issue %s exists", ErrStateConflict, issue.ID)
	}

	now := s.now()
	issue.CreatedAt, issue.UpdatedAt = now, now
	issue.Responses = nil
	stored := cloneIssue(&issue)
	s.issues[issue.ID] = &stored

	out := cloneIssue(&stored)
	return &out, nil
}

func (s *MemoryStore) Find(ctx context.Context, id uuid.UUID) (*Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneIssue(i)
	return &out, nil
}

func (s *MemoryStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Issue], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := page.SearchTerm()
	var matched []Issue
	for _, i := range s.issues {
		if !filters.Matches(i) {
			continue
		}
		if term != "" && !searchMatches(i, term) {
			continue
		}
		matched = append(matched, cloneIssue(i))
	}

	slices.SortFunc(matched, func(a, b Issue) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), bytes.Compare(a.ID[:], b.ID[:]))
	})

	result := pagination.Slice(matched, page)
	return &result, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id uuid.UUID, from, to Status) (*Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	if i.Status != from {
		return nil, fmt.Errorf("%w: issue is %s, expected %s", ErrStateConflict, i.Status, from)
	}

	now := s.now()
	applyTransition(i, to, now)

	out := cloneIssue(i)
	return &out, nil
}

func (s *MemoryStore) FlagFollowUp(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.issues[id]
	if !ok {
		return ErrNotFound
	}
	if i.Status == Responded {
		i.NeedsFollowUp = true
		i.UpdatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) Aged(ctx context.Context, status Status, cutoff time.Time) ([]Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Issue
	for _, i := range s.issues {
		if i.Status == status && !i.CreatedAt.After(cutoff) {
			out = append(out, cloneIssue(i))
		}
	}
	slices.SortFunc(out, func(a, b Issue) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), bytes.Compare(a.ID[:], b.ID[:]))
	})
	return out, nil
}

func (s *MemoryStore) InsertResponse(ctx context.Context, r Response) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[r.IssueID]; !ok {
		return nil, ErrNotFound
	}
	for _, existing := range s.responses {
		if existing.IssueID == r.IssueID && existing.Status == VerificationPending {
			return nil, fmt.Errorf("%w: issue already has a pending response", ErrStateConflict)
		}
	}

	r.CreatedAt = s.now()
	stored := cloneResponse(&r)
	s.responses[r.ID] = &stored

	out := cloneResponse(&stored)
	return &out, nil
}

func (s *MemoryStore) FindResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneResponse(r)
	return &out, nil
}

func (s *MemoryStore) Responses(ctx context.Context, issueID uuid.UUID) ([]Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Response, 0)
	for _, r := range s.responses {
		if r.IssueID == issueID {
			out = append(out, cloneResponse(r))
		}
	}
	slices.SortFunc(out, func(a, b Response) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), bytes.Compare(a.ID[:], b.ID[:]))
	})
	return out, nil
}

func (s *MemoryStore) RecordOutcome(
	ctx context.Context,
	id uuid.UUID,
	o Outcome,
	status VerificationStatus,
	points int64,
) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != VerificationPending {
		return nil, fmt.Errorf("%w: response already %s", ErrStateConflict, r.Status)
	}

	now := s.now()
	r.Outcome = &o
	r.Status = status
	r.PointsAwarded = points
	r.VerifiedAt = &now

	out := cloneResponse(r)
	return &out, nil
}

func (s *MemoryStore) Activity(ctx context.Context, id uuid.UUID, since time.Time) (jurisdictions.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := jurisdictions.Activity{
		IssuesByType: make(map[string]int),
		Monthly:      make(map[string]int),
	}

	var (
		total    time.Duration
		resolved int
	)
	for _, i := range s.issues {
		if i.JurisdictionID != id {
			continue
		}
		a.IssuesByType[string(i.IssueType)]++
		if !i.CreatedAt.Before(since) {
			a.Monthly[i.CreatedAt.Format("2006-01")]++
		}
		if i.ResolvedAt != nil {
			total += i.ResolvedAt.Sub(i.CreatedAt)
			resolved++
		}
	}

	if resolved > 0 {
		avg := total / time.Duration(resolved)
		a.ResolutionDuration = &avg
	}
	return a, nil
}

// applyTransition stamps the bookkeeping that accompanies a status change.
func applyTransition(i *Issue, to Status, now time.Time) {
	i.Status = to
	i.NeedsFollowUp = false
	i.UpdatedAt = now
	switch to {
	case Verified:
		i.ResolvedAt = &now
	case Disputed:
		i.ResolvedAt = nil
	}
}

func searchMatches(i *Issue, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(i.Description), term) {
		return true
	}
	if i.Address != nil {
		return strings.Contains(strings.ToLower(i.Address.FormattedAddress), term) ||
			strings.Contains(strings.ToLower(i.Address.City), term)
	}
	return false
}

func cloneIssue(i *Issue) Issue {
	out := *i
	if i.Address != nil {
		a := *i.Address
		out.Address = &a
	}
	if i.TypeConfidence != nil {
		c := *i.TypeConfidence
		out.TypeConfidence = &c
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		out.ResolvedAt = &t
	}
	out.Responses = nil
	return out
}

func cloneResponse(r *Response) Response {
	out := *r
	if r.Outcome != nil {
		o := *r.Outcome
		out.Outcome = &o
	}
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		out.VerifiedAt = &t
	}
	return out
}
