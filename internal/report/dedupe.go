package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/storage"
)

// Dedupe forwards a match only if its event id is not in seen. Ids are
// recorded after next succeeds, so a failed report is retried when the
// transaction is announced again.
type Dedupe struct {
	seen   storage.MatchStore
	next   Reporter
	logger *zap.Logger
}

// NewDedupe wraps next. seen is typically a bounded memory store.
func NewDedupe(seen storage.MatchStore, next Reporter, logger *zap.Logger) *Dedupe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dedupe{seen: seen, next: next, logger: logger.Named("dedupe")}
}

// Report implements Reporter.
func (d *Dedupe) Report(ctx context.Context, m domain.Match) error {
	_, err := d.seen.GetByID(ctx, m.EventID)
	switch {
	case err == nil:
		d.logger.Debug("match already reported", zap.Stringer("event_id", m.EventID))
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("lookup reported match %s: %w", m.EventID, err)
	}

	if err := d.next.Report(ctx, m); err != nil {
		return err
	}

	if err := d.seen.Insert(ctx, &m); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("record reported match %s: %w", m.EventID, err)
	}
	return nil
}

// Compile-time interface check.
var _ Reporter = (*Dedupe)(nil)
