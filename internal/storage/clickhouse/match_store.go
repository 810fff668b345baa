package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/observability"
	"eth-wallet-watch/internal/storage"
)

const database = "clickhouse"

// MatchStore implements storage.MatchStore using ClickHouse.
type MatchStore struct {
	conn    *Conn
	metrics *observability.Metrics
}

// NewMatchStore creates a new MatchStore. metrics may be nil.
func NewMatchStore(conn *Conn, metrics *observability.Metrics) *MatchStore {
	return &MatchStore{conn: conn, metrics: metrics}
}

// Compile-time interface check.
var _ storage.MatchStore = (*MatchStore)(nil)

// Insert adds a new match. Returns ErrDuplicateKey if event_id exists.
func (s *MatchStore) Insert(ctx context.Context, m *domain.Match) (err error) {
	if err := storage.ValidateMatch(m); err != nil {
		return err
	}

	start := time.Now()
	defer func() { s.metrics.RecordDBQuery(database, "insert_match", time.Since(start), err) }()

	// MergeTree does not enforce uniqueness; check before insert.
	exists, err := s.exists(ctx, m.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	// Native batch so value_wei is appended as a typed UInt256.
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO matches (
			event_id, originator, recipient, value_wei, observed_at, attempt
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		m.EventID.String(),
		m.Originator.Hex(),
		m.Recipient.Hex(),
		m.Magnitude,
		m.ObservedAt.UTC(),
		uint32(m.Attempt),
	)
	if err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by its event ID. Returns ErrNotFound if not exists.
func (s *MatchStore) GetByID(ctx context.Context, eventID domain.Hash) (_ *domain.Match, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery(database, "get_match", time.Since(start), err) }()

	query := `
		SELECT event_id, originator, recipient, value_wei, observed_at, attempt
		FROM matches
		WHERE event_id = ?
		LIMIT 1
	`

	matches, err := s.query(ctx, query, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("get match by id: %w", err)
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	return matches[0], nil
}

// GetByRecipient retrieves matches sent to recipient, newest first.
func (s *MatchStore) GetByRecipient(ctx context.Context, recipient domain.Address, limit int) (_ []*domain.Match, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery(database, "get_matches_by_recipient", time.Since(start), err) }()

	query := `
		SELECT event_id, originator, recipient, value_wei, observed_at, attempt
		FROM matches
		WHERE recipient = ?
		ORDER BY observed_at DESC, event_id ASC
	`
	args := []interface{}{recipient.Hex()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, uint64(limit))
	}

	matches, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get matches by recipient: %w", err)
	}
	return matches, nil
}

func (s *MatchStore) exists(ctx context.Context, eventID domain.Hash) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM matches WHERE event_id = ?`, eventID.String())
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MatchStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Match, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Match
	for rows.Next() {
		var (
			eventID, originator, recipient string
			value                          big.Int
			observedAt                     time.Time
			attempt                        uint32
		)
		if err := rows.Scan(&eventID, &originator, &recipient, &value, &observedAt, &attempt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}

		m := &domain.Match{
			Magnitude:  new(big.Int).Set(&value),
			ObservedAt: observedAt.UTC(),
			Attempt:    int(attempt),
		}
		if m.EventID, err = domain.ParseHash(eventID); err != nil {
			return nil, fmt.Errorf("decode event_id: %w", err)
		}
		if m.Originator, err = domain.ParseAddress(originator); err != nil {
			return nil, fmt.Errorf("decode originator: %w", err)
		}
		if m.Recipient, err = domain.ParseAddress(recipient); err != nil {
			return nil, fmt.Errorf("decode recipient: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return result, nil
}
