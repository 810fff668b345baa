package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte width of an account address.
const AddressLength = 20

// ErrInvalidAddress is returned when an address string cannot be parsed.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a party in a transaction (sender or recipient).
// Comparison is exact byte equality.
type Address [AddressLength]byte

// ParseAddress parses a 40-digit hex address with optional 0x prefix.
// Mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (Address, error) {
	var a Address

	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != AddressLength*2 {
		return a, fmt.Errorf("%w: %q: want %d hex digits, got %d", ErrInvalidAddress, s, AddressLength*2, len(raw))
	}

	if _, err := hex.Decode(a[:], []byte(raw)); err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	lower, upper := strings.ToLower(raw), strings.ToUpper(raw)
	if raw != lower && raw != upper && checksumHex(a) != raw {
		return Address{}, fmt.Errorf("%w: %q: checksum mismatch", ErrInvalidAddress, s)
	}

	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hex returns the lowercase 0x-prefixed form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	return "0x" + checksumHex(a)
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// checksumHex returns the 40 hex digits of a with EIP-55 capitalisation.
func checksumHex(a Address) string {
	lower := hex.EncodeToString(a[:])

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		// Nibble i of the digest decides the case of hex digit i.
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
