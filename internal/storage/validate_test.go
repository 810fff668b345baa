package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"eth-wallet-watch/internal/domain"
)

func TestValidateMatch(t *testing.T) {
	valid := func() *domain.Match {
		return &domain.Match{
			EventID:   domain.Hash{1},
			Magnitude: big.NewInt(0),
		}
	}

	tests := []struct {
		name    string
		m       *domain.Match
		wantErr bool
	}{
		{"valid", valid(), false},
		{"nil", nil, true},
		{"empty event id", &domain.Match{Magnitude: big.NewInt(1)}, true},
		{"nil value", &domain.Match{EventID: domain.Hash{1}}, true},
		{"negative value", &domain.Match{EventID: domain.Hash{1}, Magnitude: big.NewInt(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMatch(tt.m)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
