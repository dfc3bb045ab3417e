package jurisdictions

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
)

// MemoryStore keeps the catalog in process. Each method holds the lock for
// its whole body, so single-row updates are atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Jurisdiction
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[uuid.UUID]*Jurisdiction),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Jurisdiction], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := page.SearchTerm()
	var matched []Jurisdiction
	for _, j := range s.items {
		if !filters.Matches(j) {
			continue
		}
		if term != "" &&
			!containsFold(j.Name, term) &&
			!containsFold(j.District, term) &&
			!containsFold(j.City, term) {
			continue
		}
		matched = append(matched, *j)
	}

	slices.SortFunc(matched, func(a, b Jurisdiction) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), bytes.Compare(a.ID[:], b.ID[:]))
	})

	result := pagination.Slice(matched, page)
	return &result, nil
}

func (s *MemoryStore) Ranked(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Jurisdiction], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ranked []Jurisdiction
	for _, j := range s.items {
		if j.LedgerSuspended || !filters.Matches(j) {
			continue
		}
		ranked = append(ranked, *j)
	}

	slices.SortFunc(ranked, compareRank)

	result := pagination.Slice(ranked, page)
	return &result, nil
}

func (s *MemoryStore) Rank(ctx context.Context, target *Jurisdiction) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rank := 1
	for _, j := range s.items {
		if j.LedgerSuspended || j.ID == target.ID {
			continue
		}
		if compareRank(*j, *target) < 0 {
			rank++
		}
	}
	return rank, nil
}

func (s *MemoryStore) Find(ctx context.Context, id uuid.UUID) (*Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(j)
	return &out, nil
}

// Lock is Find. Memory mutations are serialized by the store mutex.
func (s *MemoryStore) Lock(ctx context.Context, id uuid.UUID) (*Jurisdiction, error) {
	return s.Find(ctx, id)
}

func (s *MemoryStore) Snapshot(ctx context.Context) ([]Jurisdiction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Jurisdiction, 0, len(s.items))
	for _, j := range s.items {
		out = append(out, clone(j))
	}
	slices.SortFunc(out, func(a, b Jurisdiction) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, j Jurisdiction) (*Jurisdiction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[j.ID]; ok {
		return nil, ErrDuplicate
	}
	for _, existing := range s.items {
		if strings.EqualFold(existing.Name, j.Name) && strings.EqualFold(existing.State, j.State) {
			return nil, ErrDuplicate
		}
	}

	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now
	stored := clone(&j)
	s.items[j.ID] = &stored

	out := clone(&stored)
	return &out, nil
}

func (s *MemoryStore) AdjustCounts(ctx context.Context, id uuid.UUID, d Counts) error {
	return s.update(id, func(j *Jurisdiction) {
		j.IssuesReceived += d.Received
		j.OpenCount += d.Open
		j.RespondedCount += d.Responded
		j.VerifiedCount += d.Verified
		j.ReviewCount += d.Review
		j.DisputedCount += d.Disputed
	})
}

func (s *MemoryStore) ApplyScore(ctx context.Context, id uuid.UUID, delta int64, resolved bool) error {
	return s.update(id, func(j *Jurisdiction) {
		j.Score += delta
		if resolved {
			j.IssuesResolved++
		}
	})
}

func (s *MemoryStore) SetScore(ctx context.Context, id uuid.UUID, score int64) error {
	return s.update(id, func(j *Jurisdiction) { j.Score = score })
}

func (s *MemoryStore) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	return s.update(id, func(j *Jurisdiction) { j.LedgerSuspended = suspended })
}

func (s *MemoryStore) update(id uuid.UUID, fn func(*Jurisdiction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	j.UpdatedAt = s.now()
	return nil
}

func compareRank(a, b Jurisdiction) int {
	return cmp.Or(cmp.Compare(b.Score, a.Score), bytes.Compare(a.ID[:], b.ID[:]))
}

func clone(j *Jurisdiction) Jurisdiction {
	out := *j
	if j.Bounds != nil {
		b := *j.Bounds
		out.Bounds = &b
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
