package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so unset flags never mask the file or the environment.
type Flags struct {
	fs *pflag.FlagSet

	wsEndpoint      string
	walletAddress   string
	resolveEndpoint string
	retryDelay      time.Duration
	maxAttempts     int
	postgresDSN     string
	clickhouseDSN   string
	metricsAddr     string
	logLevel        string
	logFormat       string
	plainOutput     bool
	csvPath         string
}

// RegisterFlags adds the config flags to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	d := Default()

	fs.StringVar(&f.wsEndpoint, "ws-endpoint", "", "Ethereum JSON-RPC websocket endpoint (env "+EnvInfuraWS+")")
	fs.StringVar(&f.walletAddress, "wallet", "", "Wallet address to watch (env "+EnvWalletAddress+")")
	fs.StringVar(&f.resolveEndpoint, "rpc-endpoint", "", "Optional HTTP JSON-RPC endpoint for transaction lookups (env "+EnvRPCEndpoint+")")
	fs.DurationVar(&f.retryDelay, "retry-delay", d.RetryDelay, "Pause before reconnecting after a failure")
	fs.IntVar(&f.maxAttempts, "max-attempts", d.MaxAttempts, "Give up after this many failed attempts (0 retries forever)")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string for storing matches")
	fs.StringVar(&f.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse DSN for storing matches (clickhouse://host:9000/db)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", d.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")
	fs.StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", d.LogFormat, "Log format: json or console")
	fs.BoolVar(&f.plainOutput, "plain", d.PlainOutput, "Print each match to stdout in plain text")
	fs.StringVar(&f.csvPath, "csv", "", "Append matches to this CSV file")

	return f
}

// Apply copies every flag the user set onto c.
func (f *Flags) Apply(c *Config) {
	changed := f.fs.Changed

	if changed("ws-endpoint") {
		c.WSEndpoint = f.wsEndpoint
	}
	if changed("wallet") {
		c.WalletAddress = f.walletAddress
	}
	if changed("rpc-endpoint") {
		c.ResolveEndpoint = f.resolveEndpoint
	}
	if changed("retry-delay") {
		c.RetryDelay = f.retryDelay
	}
	if changed("max-attempts") {
		c.MaxAttempts = f.maxAttempts
	}
	if changed("postgres-dsn") {
		c.PostgresDSN = f.postgresDSN
	}
	if changed("clickhouse-dsn") {
		c.ClickhouseDSN = f.clickhouseDSN
	}
	if changed("metrics-addr") {
		c.MetricsAddr = f.metricsAddr
	}
	if changed("log-level") {
		c.LogLevel = f.logLevel
	}
	if changed("log-format") {
		c.LogFormat = f.logFormat
	}
	if changed("plain") {
		c.PlainOutput = f.plainOutput
	}
	if changed("csv") {
		c.CSVPath = f.csvPath
	}
}
