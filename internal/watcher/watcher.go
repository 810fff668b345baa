// Package watcher runs the resilient watch loop: connect, subscribe to
// pending transactions, resolve each announced hash, report those sent to
// the watched address, and start over after a fixed delay on any failure.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"eth-wallet-watch/internal/clock"
	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/ethereum"
	"eth-wallet-watch/internal/observability"
)

// Reporter receives matches synchronously, once each, in stream order.
type Reporter interface {
	Report(ctx context.Context, m domain.Match) error
}

// Options contains configuration for creating a Watcher.
type Options struct {
	Dialer   ethereum.Dialer
	Endpoint string
	Target   domain.Address
	Reporter Reporter
	Policy   Policy
	Clock    clock.Clock            // Default: clock.Real()
	Logger   *zap.Logger            // Default: no-op
	Metrics  *observability.Metrics // Optional

	// OnTransition, if set, is called on every state change from the
	// goroutine running Run.
	OnTransition func(from, to State)
}

// Stats counts what the watcher has done since it was created.
type Stats struct {
	Attempts   int
	Failures   int
	References uint64
	Resolved   uint64
	NotFound   uint64
	Matches    uint64
}

// Watcher owns the retry policy and drives one connection per attempt.
// Within an attempt hashes are resolved and reported strictly one at a
// time, in the order the subscription yields them.
type Watcher struct {
	dialer       ethereum.Dialer
	endpoint     string
	target       domain.Address
	reporter     Reporter
	policy       Policy
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics
	onTransition func(from, to State)

	mu    sync.Mutex
	state State
	stats Stats
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Dialer == nil {
		return nil, errors.New("watcher: dialer is required")
	}
	if opts.Reporter == nil {
		return nil, errors.New("watcher: reporter is required")
	}
	if opts.Endpoint == "" {
		return nil, errors.New("watcher: endpoint is required")
	}
	if opts.Policy.RetryDelay < 0 || opts.Policy.MaxAttempts < 0 {
		return nil, fmt.Errorf("watcher: invalid policy %+v", opts.Policy)
	}

	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		dialer:       opts.Dialer,
		endpoint:     opts.Endpoint,
		target:       opts.Target,
		reporter:     opts.Reporter,
		policy:       opts.Policy,
		clock:        c,
		logger:       logger.Named("watcher"),
		metrics:      opts.Metrics,
		onTransition: opts.OnTransition,
		state:        StateIdle,
	}, nil
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until the remote ends the stream cleanly (returns nil), the
// context is cancelled (returns ctx.Err()), or an explicit MaxAttempts is
// reached (returns an error wrapping ErrAttemptsExhausted). Ordinary
// failures never end Run; they are logged and retried.
func (w *Watcher) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w.transition(StateConnecting)
		err := w.runAttempt(ctx, attempt)
		if err == nil {
			w.transition(StateTerminated)
			w.logger.Info("stream ended by remote, stopping", zap.Int("attempt", attempt))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		w.transition(StateRetrying)
		w.recordFailure(err)

		if w.policy.MaxAttempts > 0 && attempt >= w.policy.MaxAttempts {
			w.logger.Error("giving up", zap.Error(err), zap.Int("attempts", attempt))
			return fmt.Errorf("%w: %w", ErrAttemptsExhausted, err)
		}

		w.logger.Warn("watch attempt failed, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", w.policy.RetryDelay))

		w.clock.Sleep(w.policy.RetryDelay)
	}
}

// runAttempt performs one connect-subscribe-stream cycle. It returns nil
// only when the remote ended the stream cleanly. The connection is closed
// before it returns, whatever the outcome.
func (w *Watcher) runAttempt(ctx context.Context, attempt int) error {
	w.mu.Lock()
	w.stats.Attempts++
	w.mu.Unlock()
	w.metrics.RecordAttempt()

	w.logger.Info("connecting",
		zap.String("endpoint", ethereum.RedactEndpoint(w.endpoint)),
		zap.Int("attempt", attempt))

	conn, err := w.dialer.Dial(ctx, w.endpoint)
	if err != nil {
		return &AttemptError{Attempt: attempt, Stage: StageConnect, Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			w.logger.Debug("close connection", zap.Error(err))
		}
	}()

	sub, err := conn.Subscribe(ctx)
	if err != nil {
		return &AttemptError{Attempt: attempt, Stage: StageSubscribe, Err: err}
	}

	w.transition(StateStreaming)
	w.logger.Info("listening for transactions", zap.Stringer("address", w.target))

	for {
		hash, err := sub.Next(ctx)
		if errors.Is(err, ethereum.ErrStreamEnded) {
			return nil
		}
		if err != nil {
			return &AttemptError{Attempt: attempt, Stage: StageStream, Err: err}
		}

		if err := w.process(ctx, conn, hash, attempt); err != nil {
			if errors.Is(err, errRemoteClosed) {
				return nil
			}
			return err
		}
	}
}

// process resolves one hash, filters it, and reports a match.
func (w *Watcher) process(ctx context.Context, conn ethereum.Conn, hash domain.Hash, attempt int) error {
	w.mu.Lock()
	w.stats.References++
	w.mu.Unlock()
	w.metrics.RecordReference()

	start := w.clock.Now()
	tx, err := conn.Resolve(ctx, hash)
	elapsed := w.clock.Now().Sub(start)

	switch {
	case errors.Is(err, ethereum.ErrNotFound):
		// Dropped from the pending pool before we asked for it.
		w.metrics.RecordResolution(observability.ResultNotFound, elapsed)
		w.mu.Lock()
		w.stats.NotFound++
		w.mu.Unlock()
		return nil
	case errors.Is(err, ethereum.ErrStreamEnded):
		// The node closed cleanly while announced hashes were still queued.
		w.logger.Debug("stream ended before resolve", zap.Stringer("hash", hash))
		return errRemoteClosed
	case err != nil:
		w.metrics.RecordResolution(observability.ResultError, elapsed)
		return &AttemptError{Attempt: attempt, Stage: StageResolve, Err: err}
	}

	w.metrics.RecordResolution(observability.ResultFound, elapsed)
	w.mu.Lock()
	w.stats.Resolved++
	w.mu.Unlock()

	if !domain.Matches(tx, w.target) {
		return nil
	}

	match := domain.NewMatch(tx, w.clock.Now(), attempt)
	if err := w.report(ctx, match); err != nil {
		return &AttemptError{Attempt: attempt, Stage: StageReport, Err: err}
	}

	w.metrics.RecordMatch(match.ObservedAt)
	w.mu.Lock()
	w.stats.Matches++
	w.mu.Unlock()
	return nil
}

// report calls the reporter, converting a panic into an error.
func (w *Watcher) report(ctx context.Context, m domain.Match) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reporter panic: %v", r)
		}
	}()
	return w.reporter.Report(ctx, m)
}

func (w *Watcher) recordFailure(err error) {
	w.mu.Lock()
	w.stats.Failures++
	w.mu.Unlock()

	stage := "unknown"
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		stage = string(attemptErr.Stage)
	}
	w.metrics.RecordAttemptFailure(stage)
}

func (w *Watcher) transition(to State) {
	w.mu.Lock()
	from := w.state
	w.state = to
	w.mu.Unlock()

	w.metrics.SetState(int(to))
	if w.onTransition != nil {
		w.onTransition(from, to)
	}
}
