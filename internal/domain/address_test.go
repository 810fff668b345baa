package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Checksummed vectors from EIP-55.
var checksumVectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestAddress_ChecksumRoundTrip(t *testing.T) {
	for _, v := range checksumVectors {
		t.Run(v, func(t *testing.T) {
			a, err := ParseAddress(v)
			require.NoError(t, err)
			assert.Equal(t, v, a.String())
			assert.Equal(t, strings.ToLower(v), a.Hex())
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "lowercase with prefix", input: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{name: "uppercase", input: "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"},
		{name: "no prefix", input: "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{name: "surrounding whitespace", input: "  0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed\n"},
		{name: "bad checksum", input: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", wantErr: true},
		{name: "too short", input: "0x5aaeb6053f3e94c9", wantErr: true},
		{name: "too long", input: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00", wantErr: true},
		{name: "not hex", input: "0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", a.Hex())
		})
	}
}

func TestAddress_ExactEquality(t *testing.T) {
	a := MustParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	b := MustParseAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	c := MustParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaee")

	assert.True(t, a == b, "case must not affect the parsed value")
	assert.False(t, a == c)
	assert.False(t, a.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestAddress_JSON(t *testing.T) {
	a := MustParseAddress(checksumVectors[0])

	data, err := json.Marshal(struct {
		A Address `json:"a"`
	}{a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"`+checksumVectors[0]+`"}`, string(data))

	var out struct {
		A Address `json:"a"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, a, out.A)
}
