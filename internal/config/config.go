// Package config loads watcher settings. Sources, lowest precedence first:
// built-in defaults, an optional YAML file, .env files, the process
// environment, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"eth-wallet-watch/internal/domain"
	"eth-wallet-watch/internal/ethereum"
)

// Environment variable names.
const (
	EnvInfuraWS      = "INFURA_WS"
	EnvWSEndpoint    = "WS_ENDPOINT"
	EnvWalletAddress = "WALLET_ADDRESS"
	EnvRPCEndpoint   = "RPC_ENDPOINT"
	EnvRetryDelay    = "RETRY_DELAY"
	EnvMaxAttempts   = "MAX_ATTEMPTS"
	EnvPostgresDSN   = "POSTGRES_DSN"
	EnvClickhouseDSN = "CLICKHOUSE_DSN"
	EnvMetricsAddr   = "METRICS_ADDR"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
	EnvPlainOutput   = "PLAIN_OUTPUT"
	EnvCSVPath       = "CSV_PATH"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds every watcher setting.
type Config struct {
	WSEndpoint      string        `yaml:"ws_endpoint"`
	WalletAddress   string        `yaml:"wallet_address"`
	ResolveEndpoint string        `yaml:"resolve_endpoint"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	ClickhouseDSN   string        `yaml:"clickhouse_dsn"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	PlainOutput     bool          `yaml:"plain_output"`
	CSVPath         string        `yaml:"csv_path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		RetryDelay:  5 * time.Second,
		MetricsAddr: ":9090",
		LogLevel:    "info",
		LogFormat:   FormatConsole,
		PlainOutput: true,
	}
}

// ConfigError lists every problem found in a configuration. It is fatal:
// the watcher never starts with an invalid configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ConfigError) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the given .env files (missing ones are ignored) and the
// environment. Flags are applied separately by the caller.
func Load(path string, envFiles []string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Unparsable values are
// reported as a *ConfigError.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	cerr := &ConfigError{}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	// INFURA_WS wins over the generic name.
	str(EnvWSEndpoint, &c.WSEndpoint)
	str(EnvInfuraWS, &c.WSEndpoint)
	str(EnvWalletAddress, &c.WalletAddress)
	str(EnvRPCEndpoint, &c.ResolveEndpoint)
	str(EnvPostgresDSN, &c.PostgresDSN)
	str(EnvClickhouseDSN, &c.ClickhouseDSN)
	str(EnvMetricsAddr, &c.MetricsAddr)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLogFormat, &c.LogFormat)
	str(EnvCSVPath, &c.CSVPath)

	if v, ok := lookup(EnvRetryDelay); ok && v != "" {
		d, err := parseDelay(v)
		if err != nil {
			cerr.add("%s: %v", EnvRetryDelay, err)
		} else {
			c.RetryDelay = d
		}
	}
	if v, ok := lookup(EnvMaxAttempts); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			cerr.add("%s: %q is not an integer", EnvMaxAttempts, v)
		} else {
			c.MaxAttempts = n
		}
	}
	if v, ok := lookup(EnvPlainOutput); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			cerr.add("%s: %q is not a boolean", EnvPlainOutput, v)
		} else {
			c.PlainOutput = b
		}
	}

	return cerr.errOrNil()
}

// parseDelay accepts a Go duration ("5s") or a bare number of seconds.
func parseDelay(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", v)
	}
	return d, nil
}

// Validate checks c and returns a *ConfigError listing every problem.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	switch {
	case c.WSEndpoint == "":
		cerr.add("ws_endpoint is required (set %s)", EnvInfuraWS)
	default:
		u, err := url.Parse(c.WSEndpoint)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			cerr.add("ws_endpoint must be a ws:// or wss:// URL")
		}
	}

	switch {
	case c.WalletAddress == "":
		cerr.add("wallet_address is required (set %s)", EnvWalletAddress)
	default:
		if _, err := domain.ParseAddress(c.WalletAddress); err != nil {
			cerr.add("wallet_address: %v", err)
		}
	}

	if c.ResolveEndpoint != "" {
		u, err := url.Parse(c.ResolveEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			cerr.add("resolve_endpoint must be an http:// or https:// URL")
		}
	}

	if c.RetryDelay < 0 {
		cerr.add("retry_delay must not be negative")
	}
	if c.MaxAttempts < 0 {
		cerr.add("max_attempts must not be negative")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		cerr.add("log_level: unknown level %q", c.LogLevel)
	}
	if c.LogFormat != FormatJSON && c.LogFormat != FormatConsole {
		cerr.add("log_format must be %q or %q", FormatJSON, FormatConsole)
	}

	return cerr.errOrNil()
}

// Target returns the parsed wallet address. Call after Validate.
func (c *Config) Target() domain.Address {
	a, _ := domain.ParseAddress(c.WalletAddress)
	return a
}

// Fields returns a log-safe summary; endpoints are reduced to scheme and host.
func (c *Config) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("ws_endpoint", ethereum.RedactEndpoint(c.WSEndpoint)),
		zap.String("wallet_address", c.WalletAddress),
		zap.Duration("retry_delay", c.RetryDelay),
		zap.Int("max_attempts", c.MaxAttempts),
		zap.Bool("postgres", c.PostgresDSN != ""),
		zap.Bool("clickhouse", c.ClickhouseDSN != ""),
	}
	if c.ResolveEndpoint != "" {
		fields = append(fields, zap.String("resolve_endpoint", ethereum.RedactEndpoint(c.ResolveEndpoint)))
	}
	if c.CSVPath != "" {
		fields = append(fields, zap.String("csv_path", c.CSVPath))
	}
	return fields
}
