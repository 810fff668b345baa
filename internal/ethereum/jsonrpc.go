package ethereum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"eth-wallet-watch/internal/domain"
)

// JSON-RPC method names.
const (
	methodSubscribe        = "eth_subscribe"
	methodSubscription     = "eth_subscription"
	methodGetTransaction   = "eth_getTransactionByHash"
	subscriptionPendingTxs = "newPendingTransactions"
	jsonRPCVersion         = "2.0"
)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcMessage is any inbound frame: a response (ID set) or a subscription
// notification (Method set).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Params  *rpcSubParams   `json:"params,omitempty"`
}

type rpcSubParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// rpcTransaction is the raw eth_getTransactionByHash result.
type rpcTransaction struct {
	Hash     string  `json:"hash"`
	From     string  `json:"from"`
	To       *string `json:"to"`
	Value    string  `json:"value"`
	Nonce    string  `json:"nonce"`
	Gas      string  `json:"gas"`
	GasPrice *string `json:"gasPrice"`
	Input    string  `json:"input"`
}

// isNull reports whether a raw result is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeTransaction converts a raw transaction result. A null result is
// reported as ErrNotFound.
func decodeTransaction(raw json.RawMessage) (*domain.Transaction, error) {
	if isNull(raw) {
		return nil, ErrNotFound
	}

	var r rpcTransaction
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}

	hash, err := domain.ParseHash(r.Hash)
	if err != nil {
		return nil, fmt.Errorf("transaction hash: %w", err)
	}

	from, err := domain.ParseAddress(r.From)
	if err != nil {
		return nil, fmt.Errorf("transaction from: %w", err)
	}

	tx := &domain.Transaction{
		Hash: hash,
		From: from,
	}

	if r.To != nil && *r.To != "" {
		to, err := domain.ParseAddress(*r.To)
		if err != nil {
			return nil, fmt.Errorf("transaction to: %w", err)
		}
		tx.To = &to
	}

	if tx.Value, err = decodeBig(r.Value); err != nil {
		return nil, fmt.Errorf("transaction value: %w", err)
	}
	if tx.Nonce, err = decodeUint64(r.Nonce); err != nil {
		return nil, fmt.Errorf("transaction nonce: %w", err)
	}
	if tx.Gas, err = decodeUint64(r.Gas); err != nil {
		return nil, fmt.Errorf("transaction gas: %w", err)
	}
	if r.GasPrice != nil {
		if tx.GasPrice, err = decodeBig(*r.GasPrice); err != nil {
			return nil, fmt.Errorf("transaction gasPrice: %w", err)
		}
	}
	if in := strings.TrimPrefix(r.Input, "0x"); in != "" {
		tx.InputLen = len(in) / 2
	}

	return tx, nil
}

// decodeHashResult decodes a notification payload carrying a hash string.
func decodeHashResult(raw json.RawMessage) (domain.Hash, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Hash{}, fmt.Errorf("unmarshal hash: %w", err)
	}
	return domain.ParseHash(s)
}

// decodeBig parses a 0x-prefixed hex quantity. An empty string is zero.
func decodeBig(s string) (*big.Int, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return nil, err
	}
	if digits == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

// decodeUint64 parses a 0x-prefixed hex quantity that fits in 64 bits.
func decodeUint64(s string) (uint64, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return 0, err
	}
	if digits == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex quantity %q: %w", s, err)
	}
	return v, nil
}

func quantityDigits(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("hex quantity %q missing 0x prefix", s)
	}
	return s[2:], nil
}
