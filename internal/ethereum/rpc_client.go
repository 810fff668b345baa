package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"eth-wallet-watch/internal/domain"
)

// DefaultHTTPTimeout bounds a single HTTP JSON-RPC round trip.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPResolver implements Resolver over HTTP JSON-RPC 2.0. Each call is a
// single round trip; failures are returned to the caller, not retried.
type HTTPResolver struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// Compile-time interface check.
var _ Resolver = (*HTTPResolver)(nil)

// ResolverOption configures HTTPResolver.
type ResolverOption func(*HTTPResolver)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *HTTPResolver) {
		r.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *HTTPResolver) {
		r.client = client
	}
}

// NewHTTPResolver creates a resolver for an HTTP JSON-RPC endpoint.
func NewHTTPResolver(endpoint string, opts ...ResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches a transaction by hash.
func (r *HTTPResolver) Resolve(ctx context.Context, hash domain.Hash) (*domain.Transaction, error) {
	result, err := r.call(ctx, methodGetTransaction, []interface{}{hash.String()})
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

// call performs one JSON-RPC call.
func (r *HTTPResolver) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      r.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var msg rpcMessage
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if msg.Error != nil {
		return nil, msg.Error
	}

	return msg.Result, nil
}
