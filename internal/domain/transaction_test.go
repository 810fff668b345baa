package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	target := MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	other := MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")

	tests := []struct {
		name string
		tx   *Transaction
		want bool
	}{
		{name: "recipient is target", tx: &Transaction{To: &target}, want: true},
		{name: "recipient differs", tx: &Transaction{To: &other}, want: false},
		{name: "sender is target only", tx: &Transaction{From: target, To: &other}, want: false},
		{name: "contract creation", tx: &Transaction{From: target}, want: false},
		{name: "nil transaction", tx: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.tx, target))
		})
	}
}

func TestNewMatch(t *testing.T) {
	to := MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	tx := &Transaction{
		Hash:  MustParseHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"),
		From:  MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"),
		To:    &to,
		Value: value,
	}
	now := time.Unix(1700000000, 0)

	m := NewMatch(tx, now, 3)

	assert.Equal(t, tx.Hash, m.EventID)
	assert.Equal(t, tx.From, m.Originator)
	assert.Equal(t, to, m.Recipient)
	assert.Equal(t, 0, value.Cmp(m.Magnitude))
	assert.Equal(t, now, m.ObservedAt)
	assert.Equal(t, 3, m.Attempt)
	assert.Equal(t, "1.5", m.EtherValue().String())

	// The match owns its magnitude.
	value.SetInt64(0)
	assert.Equal(t, "1.5", m.EtherValue().String())
}

func TestMatch_EtherValueNil(t *testing.T) {
	assert.True(t, Match{}.EtherValue().IsZero())
}
