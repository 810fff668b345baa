package storage

import (
	"fmt"

	"eth-wallet-watch/internal/domain"
)

// ValidateMatch checks the fields every store requires before insert.
func ValidateMatch(m *domain.Match) error {
	if m == nil {
		return fmt.Errorf("%w: nil match", ErrInvalidInput)
	}
	if m.EventID == (domain.Hash{}) {
		return fmt.Errorf("%w: empty event id", ErrInvalidInput)
	}
	if m.Magnitude == nil || m.Magnitude.Sign() < 0 {
		return fmt.Errorf("%w: value must be non-negative", ErrInvalidInput)
	}
	return nil
}
