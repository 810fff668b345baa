package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// etherDecimals is the wei exponent of one ether.
const etherDecimals = 18

// Match is a transaction addressed to the watched wallet.
type Match struct {
	EventID    Hash      `json:"event_id"`
	Originator Address   `json:"originator"`
	Recipient  Address   `json:"recipient"`
	Magnitude  *big.Int  `json:"magnitude"` // wei
	ObservedAt time.Time `json:"observed_at"`
	Attempt    int       `json:"attempt"` // watch attempt that observed it
}

// NewMatch builds a Match from a transaction that passed the relevance check.
func NewMatch(tx *Transaction, observedAt time.Time, attempt int) Match {
	m := Match{
		EventID:    tx.Hash,
		Originator: tx.From,
		Magnitude:  new(big.Int),
		ObservedAt: observedAt,
		Attempt:    attempt,
	}
	if tx.To != nil {
		m.Recipient = *tx.To
	}
	if tx.Value != nil {
		m.Magnitude.Set(tx.Value)
	}
	return m
}

// EtherValue returns the magnitude converted from wei to ether.
func (m Match) EtherValue() decimal.Decimal {
	if m.Magnitude == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(m.Magnitude, -etherDecimals)
}
