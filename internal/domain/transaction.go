package domain

import "math/big"

// Transaction is the resolved detail for a transaction hash.
type Transaction struct {
	Hash     Hash
	From     Address
	To       *Address // nil for contract creation
	Value    *big.Int // wei
	Nonce    uint64
	Gas      uint64
	GasPrice *big.Int // nil for typed transactions that only carry fee caps
	InputLen int      // length of call data in bytes
}

// Matches reports whether tx is addressed to target.
// A transaction without a recipient never matches.
func Matches(tx *Transaction, target Address) bool {
	if tx == nil || tx.To == nil {
		return false
	}
	return *tx.To == target
}
