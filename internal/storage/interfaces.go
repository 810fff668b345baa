package storage

import (
	"context"

	"eth-wallet-watch/internal/domain"
)

// MatchStore provides access to matches storage.
type MatchStore interface {
	// Insert adds a new match. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, m *domain.Match) error

	// GetByID retrieves a match by its event ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID domain.Hash) (*domain.Match, error)

	// GetByRecipient retrieves matches sent to recipient, newest first.
	// A limit <= 0 returns every match.
	GetByRecipient(ctx context.Context, recipient domain.Address, limit int) ([]*domain.Match, error)
}
