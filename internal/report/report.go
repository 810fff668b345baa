// Package report delivers matches to their sinks: the log, the console,
// a CSV file and the match store.
package report

import (
	"context"

	"eth-wallet-watch/internal/domain"
)

// Reporter receives one match at a time, in stream order. A returned error
// ends the current watch attempt.
type Reporter interface {
	Report(ctx context.Context, m domain.Match) error
}

// Func adapts a function to Reporter.
type Func func(ctx context.Context, m domain.Match) error

// Report calls f.
func (f Func) Report(ctx context.Context, m domain.Match) error { return f(ctx, m) }

// Multi reports to each reporter in order and stops at the first error.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, match domain.Match) error {
	for _, r := range m {
		if err := r.Report(ctx, match); err != nil {
			return err
		}
	}
	return nil
}
