package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"eth-wallet-watch/internal/config"
	"eth-wallet-watch/internal/domain"
)

const (
	wallet    = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	incoming  = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
	vanished  = "0x1111111111111111111111111111111111111111111111111111111111111111"
	senderHex = "0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb"
)

// node announces two hashes, answers their lookups and then closes the
// stream cleanly. With closeEarly the close frame follows the announcements
// directly, so no lookup is ever answered.
func node(t *testing.T, closeEarly bool) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     uint64   `json:"id"`
				Method string   `json:"method"`
				Params []string `json:"params"`
			}
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal: %v", err)
				return
			}

			id, _ := json.Marshal(req.ID)
			switch req.Method {
			case "eth_subscribe":
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":`+string(id)+`,"result":"0xabc"}`))
				for _, h := range []string{incoming, vanished} {
					_ = conn.WriteMessage(websocket.TextMessage, []byte(
						`{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0xabc","result":"`+h+`"}}`))
				}
				if closeEarly {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				}
			case "eth_getTransactionByHash":
				result := "null"
				if req.Params[0] == incoming {
					result = `{"hash":"` + incoming + `","from":"` + senderHex + `","to":"` + strings.ToLower(wallet) +
						`","value":"0xde0b6b3a7640000","nonce":"0x0","gas":"0x5208","gasPrice":"0x1","input":"0x"}`
				}
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":`+string(id)+`,"result":`+result+`}`))
				if req.Params[0] == vanished {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_EndToEnd(t *testing.T) {
	srv := node(t, false)

	cfg := config.Default()
	cfg.WSEndpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.WalletAddress = wallet
	cfg.MetricsAddr = ""
	cfg.CSVPath = filepath.Join(t.TempDir(), "matches.csv")
	require.NoError(t, cfg.Validate())

	var stdout bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, cfg, zaptest.NewLogger(t), &stdout, prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t,
		"Incoming Transaction: "+incoming+"\n"+
			"From: "+senderHex+", To: "+strings.ToLower(wallet)+", Value: 1000000000000000000\n",
		stdout.String())

	data, err := os.ReadFile(cfg.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], incoming+","))
}

func TestRun_CleanCloseWithQueuedHashes(t *testing.T) {
	srv := node(t, true)

	cfg := config.Default()
	cfg.WSEndpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.WalletAddress = wallet
	cfg.MetricsAddr = ""
	cfg.RetryDelay = time.Millisecond
	cfg.MaxAttempts = 3

	var stdout bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, cfg, zaptest.NewLogger(t), &stdout, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Empty(t, stdout.String())
}

func TestRun_Cancelled(t *testing.T) {
	cfg := config.Default()
	cfg.WSEndpoint = "ws://127.0.0.1:1/ws"
	cfg.WalletAddress = wallet
	cfg.MetricsAddr = ""

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run(ctx, cfg, zaptest.NewLogger(t), &bytes.Buffer{}, prometheus.NewRegistry())
	assert.NoError(t, err)
}

func TestRun_MaxAttempts(t *testing.T) {
	cfg := config.Default()
	cfg.WSEndpoint = "ws://127.0.0.1:1/ws"
	cfg.WalletAddress = wallet
	cfg.MetricsAddr = ""
	cfg.RetryDelay = time.Millisecond
	cfg.MaxAttempts = 2

	err := run(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{}, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestRootCmd_ConfigError(t *testing.T) {
	t.Setenv(config.EnvInfuraWS, "")
	t.Setenv(config.EnvWSEndpoint, "")
	t.Setenv(config.EnvWalletAddress, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, cerr.Problems, 2)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()

	cfg.LogFormat = config.FormatJSON
	logger, err := newLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogFormat = config.FormatConsole
	cfg.LogLevel = "debug"
	logger, err = newLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	cfg.LogLevel = "loud"
	_, err = newLogger(cfg)
	assert.Error(t, err)
}

func TestBuildReporter_SuppressesReannounced(t *testing.T) {
	cfg := config.Default()
	cfg.CSVPath = filepath.Join(t.TempDir(), "matches.csv")

	var stdout bytes.Buffer
	reporter, closeAll, err := buildReporter(context.Background(), cfg, zaptest.NewLogger(t), nil, &stdout)
	require.NoError(t, err)
	defer closeAll()

	m := domain.Match{
		EventID:    domain.MustParseHash(incoming),
		Originator: domain.MustParseAddress(senderHex),
		Recipient:  domain.MustParseAddress(wallet),
		Magnitude:  big.NewInt(1),
		ObservedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Attempt:    1,
	}
	require.NoError(t, reporter.Report(context.Background(), m))
	m.Attempt = 2
	require.NoError(t, reporter.Report(context.Background(), m))

	assert.Equal(t, 1, strings.Count(stdout.String(), "Incoming Transaction: "))

	data, err := os.ReadFile(cfg.CSVPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}
