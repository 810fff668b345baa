package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/storage"
)

// StoreReporter persists matches. A pending transaction can be announced
// again after a reconnect, so a duplicate insert counts as already reported.
type StoreReporter struct {
	store  storage.MatchStore
	logger *zap.Logger
}

// NewStoreReporter creates a StoreReporter.
func NewStoreReporter(store storage.MatchStore, logger *zap.Logger) *StoreReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreReporter{store: store, logger: logger.Named("store")}
}

// Report implements Reporter.
func (r *StoreReporter) Report(ctx context.Context, m domain.Match) error {
	err := r.store.Insert(ctx, &m)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		r.logger.Debug("match already stored", zap.Stringer("event_id", m.EventID))
		return nil
	case err != nil:
		return fmt.Errorf("store match %s: %w", m.EventID, err)
	}
	return nil
}

// Compile-time interface check.
var _ Reporter = (*StoreReporter)(nil)
