package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/pagination"
)

type MemoryStore struct {
	mu     sync.RWMutex
	events []ScoreEvent
	keys   map[string]struct{}
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]struct{}),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Append(ctx context.Context, ev ScoreEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[ev.IdempotencyKey]; ok {
		return false, nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.keys[ev.IdempotencyKey] = struct{}{}
	s.events = append(s.events, ev)
	return true, nil
}

func (s *MemoryStore) Sum(ctx context.Context, jurisdictionID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, ev := range s.events {
		if ev.JurisdictionID == jurisdictionID {
			sum += ev.Delta
		}
	}
	return sum, nil
}

func (s *MemoryStore) Events(
	ctx context.Context,
	jurisdictionID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[ScoreEvent], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoreEvent
	for _, ev := range slices.Backward(s.events) {
		if ev.JurisdictionID == jurisdictionID {
			out = append(out, ev)
		}
	}

	result := pagination.Slice(out, page)
	return &result, nil
}
