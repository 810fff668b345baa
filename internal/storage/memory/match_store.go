package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/storage"
)

// MatchStore is an in-memory implementation of storage.MatchStore. With a
// positive capacity it keeps only the most recently inserted matches.
type MatchStore struct {
	mu       sync.RWMutex
	data     map[domain.Hash]*domain.Match // keyed by event_id
	order    []domain.Hash                 // insertion order, oldest first
	capacity int
}

// NewMatchStore creates a new in-memory match store. A capacity of zero or
// less means unbounded.
func NewMatchStore(capacity int) *MatchStore {
	return &MatchStore{
		data:     make(map[domain.Hash]*domain.Match),
		capacity: capacity,
	}
}

// Insert adds a new match. Returns ErrDuplicateKey if event_id exists.
func (s *MatchStore) Insert(_ context.Context, m *domain.Match) error {
	if err := storage.ValidateMatch(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	if s.capacity > 0 && len(s.order) >= s.capacity {
		delete(s.data, s.order[0])
		s.order = s.order[1:]
	}

	// Store a copy to prevent external mutation
	s.data[m.EventID] = copyMatch(m)
	s.order = append(s.order, m.EventID)
	return nil
}

// GetByID retrieves a match by its event ID. Returns ErrNotFound if not exists.
func (s *MatchStore) GetByID(_ context.Context, eventID domain.Hash) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyMatch(m), nil
}

// GetByRecipient retrieves matches sent to recipient, newest first.
func (s *MatchStore) GetByRecipient(_ context.Context, recipient domain.Address, limit int) ([]*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Match
	for _, m := range s.data {
		if m.Recipient == recipient {
			result = append(result, copyMatch(m))
		}
	}

	// Sort by observed_at DESC, event_id ASC for ties
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.After(result[j].ObservedAt)
		}
		return result[i].EventID.String() < result[j].EventID.String()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored matches.
func (s *MatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func copyMatch(m *domain.Match) *domain.Match {
	c := *m
	if m.Magnitude != nil {
		c.Magnitude = new(big.Int).Set(m.Magnitude)
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.MatchStore = (*MatchStore)(nil)
