package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/observability"
	"eth-wallet-watch/internal/storage"
)

const database = "postgres"

// MatchStore implements storage.MatchStore using PostgreSQL.
type MatchStore struct {
	pool    *Pool
	metrics *observability.Metrics
}

// NewMatchStore creates a new MatchStore. metrics may be nil.
func NewMatchStore(pool *Pool, metrics *observability.Metrics) *MatchStore {
	return &MatchStore{pool: pool, metrics: metrics}
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

	query := `
		INSERT INTO matches (
			event_id, originator, recipient, value_wei, observed_at, attempt
		) VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		m.EventID.String(),
		m.Originator.Hex(),
		m.Recipient.Hex(),
		m.Magnitude.String(),
		m.ObservedAt.UTC(),
		m.Attempt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by its event ID. Returns ErrNotFound if not exists.
func (s *MatchStore) GetByID(ctx context.Context, eventID domain.Hash) (*domain.Match, error) {
	query := `
		SELECT event_id, originator, recipient, value_wei::text, observed_at, attempt
		FROM matches
		WHERE event_id = $1
	`

	start := time.Now()
	m, err := scanMatch(s.pool.QueryRow(ctx, query, eventID.String()))
	if err != nil {
		if isNotFoundError(err) {
			s.metrics.RecordDBQuery(database, "get_match", time.Since(start), nil)
			return nil, storage.ErrNotFound
		}
		s.metrics.RecordDBQuery(database, "get_match", time.Since(start), err)
		return nil, fmt.Errorf("get match by id: %w", err)
	}
	s.metrics.RecordDBQuery(database, "get_match", time.Since(start), nil)
	return m, nil
}

// GetByRecipient retrieves matches sent to recipient, newest first.
func (s *MatchStore) GetByRecipient(ctx context.Context, recipient domain.Address, limit int) (_ []*domain.Match, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery(database, "get_matches_by_recipient", time.Since(start), err) }()

	query := `
		SELECT event_id, originator, recipient, value_wei::text, observed_at, attempt
		FROM matches
		WHERE recipient = $1
		ORDER BY observed_at DESC, event_id ASC
	`
	args := []interface{}{recipient.Hex()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get matches by recipient: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// scanMatch scans a single row into a Match.
func scanMatch(row pgx.Row) (*domain.Match, error) {
	var (
		eventID, originator, recipient, value string
		m                                     domain.Match
	)

	err := row.Scan(
		&eventID,
		&originator,
		&recipient,
		&value,
		&m.ObservedAt,
		&m.Attempt,
	)
	if err != nil {
		return nil, err
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

	wei, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("decode value_wei %q", value)
	}
	m.Magnitude = wei
	m.ObservedAt = m.ObservedAt.UTC()

	return &m, nil
}

// scanMatches scans multiple rows into a slice of Match.
func scanMatches(rows pgx.Rows) ([]*domain.Match, error) {
	var result []*domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return result, nil
}
