package ethereum

import (
	"context"
	"net/url"

	"eth-wallet-watch/internal/domain"
)

// Dialer opens connections to a node. Dial performs exactly one handshake
// and does not retry.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Resolver fetches full transaction detail by hash. It returns ErrNotFound
// when the node has no record of the hash.
type Resolver interface {
	Resolve(ctx context.Context, hash domain.Hash) (*domain.Transaction, error)
}

// Conn is one live session with a node.
type Conn interface {
	Resolver

	// Subscribe opens the pending transaction feed. It may be called at
	// most once per Conn.
	Subscribe(ctx context.Context) (Subscription, error)

	// Close releases the session. Safe to call more than once.
	Close() error
}

// Subscription yields pending transaction hashes in the order the node
// announced them. It ends when its Conn ends.
type Subscription interface {
	// Next blocks until the next hash arrives. It returns ErrStreamEnded
	// on a clean end and a *StreamError on any other termination.
	Next(ctx context.Context) (domain.Hash, error)
}

// RedactEndpoint strips credentials, path and query from an endpoint so it
// can be logged. Hosted providers embed API keys in the path.
func RedactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "<invalid endpoint>"
	}
	return u.Scheme + "://" + u.Host
}

// WithResolver returns a Dialer whose connections resolve hashes through r
// instead of the subscribed connection.
func WithResolver(d Dialer, r Resolver) Dialer {
	if r == nil {
		return d
	}
	return &resolvingDialer{dialer: d, resolver: r}
}

type resolvingDialer struct {
	dialer   Dialer
	resolver Resolver
}

func (d *resolvingDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, err := d.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &resolvingConn{Conn: conn, resolver: d.resolver}, nil
}

type resolvingConn struct {
	Conn
	resolver Resolver
}

func (c *resolvingConn) Resolve(ctx context.Context, hash domain.Hash) (*domain.Transaction, error) {
	return c.resolver.Resolve(ctx, hash)
}
