package ethereum

import (
	"errors"
	"fmt"

	"eth-wallet-watch/internal/domain"
)

var (
	// ErrNotFound is returned by Resolve when the node no longer knows the
	// transaction (dropped from the pending pool before it was fetched).
	// It is not a failure of the connection.
	ErrNotFound = errors.New("transaction not found")

	// ErrStreamEnded is returned by Subscription.Next when the remote closed
	// the stream cleanly.
	ErrStreamEnded = errors.New("stream ended")

	// ErrAlreadySubscribed is returned by a second Subscribe on the same Conn.
	ErrAlreadySubscribed = errors.New("connection already subscribed")

	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("connection closed")
)

// ConnectionError reports a failed handshake.
type ConnectionError struct {
	Endpoint string // redacted
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SubscriptionError reports a failure to open the pending transaction feed.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// StreamError reports an abnormal end of the subscription.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ResolutionError reports a failed lookup other than not-found.
type ResolutionError struct {
	Hash domain.Hash
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Hash, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}
