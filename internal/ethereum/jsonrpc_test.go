package ethereum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction(t *testing.T) {
	t.Run("null is not found", func(t *testing.T) {
		for _, raw := range []string{"null", " null ", ""} {
			_, err := decodeTransaction(json.RawMessage(raw))
			assert.ErrorIs(t, err, ErrNotFound, "raw=%q", raw)
		}
	})

	t.Run("contract creation has no recipient", func(t *testing.T) {
		raw := `{"hash":"` + hashA + `","from":"` + fromAddr + `","to":null,"value":"0x0","nonce":"0x0","gas":"0x0","input":"0x6080"}`
		tx, err := decodeTransaction(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Nil(t, tx.To)
		assert.Nil(t, tx.GasPrice)
		assert.Equal(t, 2, tx.InputLen)
		assert.Equal(t, int64(0), tx.Value.Int64())
	})

	t.Run("large value", func(t *testing.T) {
		raw := `{"hash":"` + hashA + `","from":"` + fromAddr + `","to":"` + toAddr + `","value":"0xffffffffffffffffffffffff","nonce":"0x0","gas":"0x0"}`
		tx, err := decodeTransaction(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Equal(t, "79228162514264337593543950335", tx.Value.String())
	})

	t.Run("malformed fields fail", func(t *testing.T) {
		bad := []string{
			`{"hash":"0x12","from":"` + fromAddr + `"}`,
			`{"hash":"` + hashA + `","from":"nope"}`,
			`{"hash":"` + hashA + `","from":"` + fromAddr + `","value":"12"}`,
			`{"hash":"` + hashA + `","from":"` + fromAddr + `","value":"0x1","nonce":"0xzz"}`,
			`[1,2,3]`,
		}
		for _, raw := range bad {
			_, err := decodeTransaction(json.RawMessage(raw))
			assert.Error(t, err, raw)
			assert.NotErrorIs(t, err, ErrNotFound, raw)
		}
	})
}

func TestRedactEndpoint(t *testing.T) {
	assert.Equal(t, "wss://mainnet.infura.io", RedactEndpoint("wss://mainnet.infura.io/ws/v3/abcdef"))
	assert.Equal(t, "ws://localhost:8546", RedactEndpoint("ws://user:pass@localhost:8546/?key=1"))
	assert.Equal(t, "<invalid endpoint>", RedactEndpoint("not a url"))
}
