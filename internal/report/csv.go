package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"eth-wallet-watch/internal/domain"
)

// csvHeader lists the CSV columns in order.
var csvHeader = []string{
	"event_id", "originator", "recipient", "value_wei", "value_eth", "observed_at", "attempt",
}

// CSVReporter appends one row per match and flushes after every row.
type CSVReporter struct {
	mu sync.Mutex
	w  *csv.Writer
}

// NewCSVReporter creates a CSVReporter writing to w. The header row is
// written immediately when header is true.
func NewCSVReporter(w io.Writer, header bool) (*CSVReporter, error) {
	r := &CSVReporter{w: csv.NewWriter(w)}
	if header {
		if err := r.write(csvHeader); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Report implements Reporter.
func (r *CSVReporter) Report(_ context.Context, m domain.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(csvRow(m))
}

func (r *CSVReporter) write(record []string) error {
	if err := r.w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(m domain.Match) []string {
	return []string{
		m.EventID.String(),
		m.Originator.Hex(),
		m.Recipient.Hex(),
		m.Magnitude.String(),
		m.EtherValue().String(),
		m.ObservedAt.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(m.Attempt),
	}
}

// Compile-time interface check.
var _ Reporter = (*CSVReporter)(nil)
