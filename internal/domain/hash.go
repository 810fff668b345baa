package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashLength is the byte width of a transaction hash.
const HashLength = 32

// ErrInvalidHash is returned when a hash string cannot be parsed.
var ErrInvalidHash = errors.New("invalid hash")

// Hash is a transaction hash. The pending-transaction subscription emits
// these as references that must be resolved to full detail.
type Hash [HashLength]byte

// ParseHash parses a 64-digit hex hash with optional 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash

	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != HashLength*2 {
		return h, fmt.Errorf("%w: %q: want %d hex digits, got %d", ErrInvalidHash, s, HashLength*2, len(raw))
	}
	if _, err := hex.Decode(h[:], []byte(raw)); err != nil {
		return Hash{}, fmt.Errorf("%w: %q: %v", ErrInvalidHash, s, err)
	}
	return h, nil
}

// MustParseHash is like ParseHash but panics on error.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the lowercase 0x-prefixed form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
