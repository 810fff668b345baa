package report

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"eth-wallet-watch/internal/domain"
)

// LogReporter logs each match and, when plain is set, prints the classic
// two-line console summary.
type LogReporter struct {
	logger *zap.Logger

	mu    sync.Mutex
	plain io.Writer
}

// NewLogReporter creates a LogReporter. plain may be nil.
func NewLogReporter(logger *zap.Logger, plain io.Writer) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger.Named("report"), plain: plain}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, m domain.Match) error {
	r.logger.Info("incoming transaction",
		zap.Stringer("event_id", m.EventID),
		zap.Stringer("from", m.Originator),
		zap.Stringer("to", m.Recipient),
		zap.String("value_wei", m.Magnitude.String()),
		zap.String("value_eth", m.EtherValue().String()),
		zap.Int("attempt", m.Attempt))

	if r.plain == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.plain, "Incoming Transaction: %s\nFrom: %s, To: %s, Value: %s\n",
		m.EventID, m.Originator.Hex(), m.Recipient.Hex(), m.Magnitude.String())
	if err != nil {
		return fmt.Errorf("write console report: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ Reporter = (*LogReporter)(nil)
