// Package stub provides a scripted ethereum.Dialer for tests. Each Dial
// consumes the next Attempt, which decides whether the handshake and
// subscription succeed, which hashes the feed yields, how each resolves,
// and how the feed ends.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/ethereum"
)

// ErrScriptExhausted is returned by Dial once every scripted attempt is used.
var ErrScriptExhausted = errors.New("stub: no scripted attempts left")

// Item is one announced hash and its resolution outcome.
type Item struct {
	Hash       domain.Hash
	Tx         *domain.Transaction // nil resolves as ethereum.ErrNotFound
	ResolveErr error               // non-nil fails the resolution
}

// Attempt scripts one connection.
type Attempt struct {
	DialErr      error
	SubscribeErr error
	Items        []Item
	// End is returned by Next after Items are exhausted. Nil means a clean
	// end (ethereum.ErrStreamEnded).
	End error
}

// Dialer implements ethereum.Dialer from a script.
type Dialer struct {
	mu        sync.Mutex
	attempts  []Attempt
	dials     int
	conns     []*Conn
	endpoints []string
	resolved  []domain.Hash
}

// Compile-time interface check.
var _ ethereum.Dialer = (*Dialer)(nil)

// NewDialer creates a dialer that plays attempts in order.
func NewDialer(attempts ...Attempt) *Dialer {
	return &Dialer{attempts: attempts}
}

// Dial consumes the next scripted attempt.
func (d *Dialer) Dial(_ context.Context, endpoint string) (ethereum.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.endpoints = append(d.endpoints, endpoint)

	if d.dials >= len(d.attempts) {
		d.dials++
		return nil, &ethereum.ConnectionError{Endpoint: endpoint, Err: ErrScriptExhausted}
	}

	attempt := d.attempts[d.dials]
	d.dials++

	if attempt.DialErr != nil {
		return nil, &ethereum.ConnectionError{Endpoint: endpoint, Err: attempt.DialErr}
	}

	c := &Conn{
		dialer:  d,
		attempt: attempt,
		byHash:  make(map[domain.Hash]Item, len(attempt.Items)),
	}
	for _, it := range attempt.Items {
		c.byHash[it.Hash] = it
	}
	d.conns = append(d.conns, c)
	return c, nil
}

// Dials returns how many times Dial was called.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Endpoints returns the endpoint passed to each Dial call.
func (d *Dialer) Endpoints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.endpoints...)
}

// Conns returns every connection handed out, in dial order.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Resolved returns every hash passed to Resolve across all connections,
// in call order.
func (d *Dialer) Resolved() []domain.Hash {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Hash(nil), d.resolved...)
}

func (d *Dialer) recordResolve(h domain.Hash) {
	d.mu.Lock()
	d.resolved = append(d.resolved, h)
	d.mu.Unlock()
}

// Conn is a scripted ethereum.Conn.
type Conn struct {
	dialer  *Dialer
	attempt Attempt
	byHash  map[domain.Hash]Item

	mu         sync.Mutex
	subscribes int
	next       int
	closes     int
	usedClosed bool
}

// Compile-time interface check.
var _ ethereum.Conn = (*Conn)(nil)

// Subscribe returns the scripted feed or the scripted failure.
func (c *Conn) Subscribe(_ context.Context) (ethereum.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribes++
	if c.closes > 0 {
		c.usedClosed = true
		return nil, &ethereum.SubscriptionError{Err: ethereum.ErrClosed}
	}
	if c.subscribes > 1 {
		return nil, &ethereum.SubscriptionError{Err: ethereum.ErrAlreadySubscribed}
	}
	if c.attempt.SubscribeErr != nil {
		return nil, &ethereum.SubscriptionError{Err: c.attempt.SubscribeErr}
	}
	return &subscription{conn: c}, nil
}

// Resolve returns the scripted outcome for hash.
func (c *Conn) Resolve(_ context.Context, hash domain.Hash) (*domain.Transaction, error) {
	c.mu.Lock()
	if c.closes > 0 {
		c.usedClosed = true
	}
	it, ok := c.byHash[hash]
	c.mu.Unlock()

	c.dialer.recordResolve(hash)

	switch {
	case !ok || (it.Tx == nil && it.ResolveErr == nil):
		return nil, ethereum.ErrNotFound
	case it.ResolveErr != nil:
		return nil, &ethereum.ResolutionError{Hash: hash, Err: it.ResolveErr}
	}

	tx := *it.Tx
	return &tx, nil
}

// Close marks the connection closed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Closed reports whether Close was called at least once.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes > 0
}

// UsedAfterClose reports whether any operation ran after Close.
func (c *Conn) UsedAfterClose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedClosed
}

// Subscribes returns how many times Subscribe was called.
func (c *Conn) Subscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

type subscription struct {
	conn *Conn
}

func (s *subscription) Next(ctx context.Context) (domain.Hash, error) {
	if err := ctx.Err(); err != nil {
		return domain.Hash{}, err
	}

	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closes > 0 {
		c.usedClosed = true
		return domain.Hash{}, ethereum.ErrClosed
	}

	if c.next < len(c.attempt.Items) {
		h := c.attempt.Items[c.next].Hash
		c.next++
		return h, nil
	}

	if c.attempt.End != nil {
		return domain.Hash{}, c.attempt.End
	}
	return domain.Hash{}, ethereum.ErrStreamEnded
}

// Transfer builds a plain value transfer. A nil to makes a contract creation.
func Transfer(hash domain.Hash, from domain.Address, to *domain.Address, wei int64) *domain.Transaction {
	return &domain.Transaction{
		Hash:  hash,
		From:  from,
		To:    to,
		Value: big.NewInt(wei),
	}
}
