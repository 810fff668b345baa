package watcher

import (
	"errors"
	"fmt"
	"time"
)

// State is a watch loop state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateRetrying
	StateTerminated
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names the step at which an attempt failed.
type Stage string

const (
	StageConnect   Stage = "connect"
	StageSubscribe Stage = "subscribe"
	StageStream    Stage = "stream"
	StageResolve   Stage = "resolve"
	StageReport    Stage = "report"
)

// AttemptError reports why an attempt ended.
type AttemptError struct {
	Attempt int
	Stage   Stage
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d failed at %s: %v", e.Attempt, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ErrAttemptsExhausted is returned by Run when Policy.MaxAttempts is set
// and every attempt failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// errRemoteClosed ends an attempt cleanly when the remote closes the stream
// mid-resolve.
var errRemoteClosed = errors.New("remote closed stream")

// DefaultRetryDelay is the pause between a failed attempt and the next.
const DefaultRetryDelay = 5 * time.Second

// Policy is the retry policy: a constant delay and, by default, no limit
// on the number of attempts.
type Policy struct {
	// RetryDelay is the constant pause before reconnecting.
	RetryDelay time.Duration
	// MaxAttempts caps the number of attempts. Zero retries forever.
	MaxAttempts int
}

// DefaultPolicy returns a 5s constant delay with unbounded retries.
func DefaultPolicy() Policy {
	return Policy{RetryDelay: DefaultRetryDelay}
}
