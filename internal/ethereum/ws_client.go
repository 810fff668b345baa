package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"eth-wallet-watch/internal/domain"
)

// WSConfig configures websocket connections.
type WSConfig struct {
	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the connection may stay silent (no message and no pong).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing a single frame.
	WriteTimeout time.Duration
	// RequestTimeout bounds the wait for a JSON-RPC response.
	RequestTimeout time.Duration
	// NotificationBuffer is how many announced hashes may queue while the
	// consumer is busy resolving. Overflow ends the stream.
	NotificationBuffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout:   10 * time.Second,
		PingInterval:       30 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		RequestTimeout:     30 * time.Second,
		NotificationBuffer: 10000,
	}
}

// withDefaults fills zero fields from DefaultWSConfig.
func (c WSConfig) withDefaults() WSConfig {
	def := DefaultWSConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.NotificationBuffer <= 0 {
		c.NotificationBuffer = def.NotificationBuffer
	}
	return c
}

// WSDialer implements Dialer using gorilla/websocket.
type WSDialer struct {
	config WSConfig
	logger *zap.Logger
}

// Compile-time interface check.
var _ Dialer = (*WSDialer)(nil)

// NewWSDialer creates a dialer. A nil config selects DefaultWSConfig.
func NewWSDialer(config *WSConfig, logger *zap.Logger) *WSDialer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = config.withDefaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSDialer{config: cfg, logger: logger.Named("ws")}
}

// Dial performs the websocket handshake. It makes a single attempt.
func (d *WSDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, &ConnectionError{Endpoint: RedactEndpoint(endpoint), Err: err}
	}

	return newWSConn(conn, d.config, d.logger), nil
}

// WSConn is a JSON-RPC session over one websocket. A single reader
// goroutine routes responses to waiting callers by request id and queues
// subscription notifications in arrival order.
type WSConn struct {
	conn   *websocket.Conn
	config WSConfig
	logger *zap.Logger

	writeMu   sync.Mutex
	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its response
	pending   map[uint64]chan *rpcMessage
	pendingMu sync.Mutex

	subscribed    atomic.Bool
	subReqID      atomic.Uint64
	subID         string
	subMu         sync.Mutex
	notifications chan domain.Hash

	// done is closed when the reader exits; err is valid after that.
	done chan struct{}
	err  error

	closed atomic.Bool
	wg     sync.WaitGroup
}

// Compile-time interface check.
var _ Conn = (*WSConn)(nil)

func newWSConn(conn *websocket.Conn, config WSConfig, logger *zap.Logger) *WSConn {
	c := &WSConn{
		conn:          conn,
		config:        config,
		logger:        logger,
		pending:       make(map[uint64]chan *rpcMessage),
		notifications: make(chan domain.Hash, config.NotificationBuffer),
		done:          make(chan struct{}),
	}

	c.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c
}

// Subscribe opens the newPendingTransactions feed.
func (c *WSConn) Subscribe(ctx context.Context) (Subscription, error) {
	if c.subscribed.Swap(true) {
		return nil, &SubscriptionError{Err: ErrAlreadySubscribed}
	}

	// Record the request id first so the reader can bind the subscription
	// id before any notification for it is processed.
	id := c.requestID.Add(1)
	c.subReqID.Store(id)

	result, err := c.do(ctx, id, methodSubscribe, []interface{}{subscriptionPendingTxs})
	if err != nil {
		return nil, &SubscriptionError{Err: err}
	}

	var subID string
	if err := json.Unmarshal(result, &subID); err != nil || subID == "" {
		return nil, &SubscriptionError{Err: fmt.Errorf("unexpected subscription id %s", string(result))}
	}

	c.logger.Debug("subscribed", zap.String("subscription", subID))
	return &wsSubscription{conn: c}, nil
}

// Resolve fetches a transaction by hash.
func (c *WSConn) Resolve(ctx context.Context, hash domain.Hash) (*domain.Transaction, error) {
	result, err := c.do(ctx, c.requestID.Add(1), methodGetTransaction, []interface{}{hash.String()})
	if err != nil {
		return nil, &ResolutionError{Hash: hash, Err: err}
	}

	tx, err := decodeTransaction(result)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &ResolutionError{Hash: hash, Err: err}
	}
	return tx, nil
}

// Close closes the WebSocket connection.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = c.conn.Close()

	c.wg.Wait()
	return nil
}

// do sends one request and waits for its response.
func (c *WSConn) do(ctx context.Context, id uint64, method string, params []interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case <-c.done:
		return nil, c.err
	default:
	}

	ch := make(chan *rpcMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	if err := c.writeJSON(req); err != nil {
		// A write racing a close frame fails before the reader has seen
		// the frame. Prefer the reader's verdict on how the stream ended.
		select {
		case <-c.done:
			return nil, c.err
		case <-ctx.Done():
		case <-timer.C:
		}
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg.Result, nil
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%s: no response after %v", method, c.config.RequestTimeout)
	}
}

func (c *WSConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *WSConn) extendReadDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
}

// readLoop reads messages until the connection fails or is closed.
func (c *WSConn) readLoop() {
	defer c.wg.Done()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.terminate(err)
			return
		}
		c.extendReadDeadline()

		if err := c.handleMessage(message); err != nil {
			c.terminate(err)
			return
		}
	}
}

// terminate records why the reader stopped and wakes every waiter.
func (c *WSConn) terminate(cause error) {
	switch {
	case c.closed.Load():
		c.err = ErrClosed
	case websocket.IsCloseError(cause, websocket.CloseNormalClosure):
		c.err = ErrStreamEnded
	default:
		c.err = &StreamError{Err: cause}
	}

	close(c.done)
	_ = c.conn.Close()
}

// handleMessage processes incoming WebSocket message.
func (c *WSConn) handleMessage(message []byte) error {
	var msg rpcMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	if msg.Method == methodSubscription {
		return c.handleNotification(msg.Params)
	}

	if msg.ID == nil {
		c.logger.Debug("ignoring message without id", zap.ByteString("message", message))
		return nil
	}

	c.handleResponse(&msg)
	return nil
}

// handleResponse hands a response to the caller waiting on its id.
func (c *WSConn) handleResponse(msg *rpcMessage) {
	id := *msg.ID

	if id == c.subReqID.Load() && msg.Error == nil {
		var subID string
		if err := json.Unmarshal(msg.Result, &subID); err == nil {
			c.subMu.Lock()
			c.subID = subID
			c.subMu.Unlock()
		}
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if ok {
		ch <- msg
	}
}

// handleNotification queues an announced hash. The queue never blocks the
// reader, since the consumer may itself be waiting on a response.
func (c *WSConn) handleNotification(params *rpcSubParams) error {
	if params == nil {
		return errors.New("notification without params")
	}

	c.subMu.Lock()
	subID := c.subID
	c.subMu.Unlock()

	if subID == "" || params.Subscription != subID {
		c.logger.Debug("ignoring notification for unknown subscription",
			zap.String("subscription", params.Subscription))
		return nil
	}

	hash, err := decodeHashResult(params.Result)
	if err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	select {
	case c.notifications <- hash:
		return nil
	default:
		return fmt.Errorf("notification buffer full (%d pending)", cap(c.notifications))
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Connection might be dead, reader will notice
				c.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

// wsSubscription reads hashes queued by the connection's reader.
type wsSubscription struct {
	conn *WSConn
}

// Next returns the next announced hash. Hashes queued before the
// connection ended are delivered before the terminal error.
func (s *wsSubscription) Next(ctx context.Context) (domain.Hash, error) {
	c := s.conn

	select {
	case h := <-c.notifications:
		return h, nil
	default:
	}

	select {
	case h := <-c.notifications:
		return h, nil
	case <-c.done:
		select {
		case h := <-c.notifications:
			return h, nil
		default:
		}
		return domain.Hash{}, c.err
	case <-ctx.Done():
		return domain.Hash{}, ctx.Err()
	}
}
