// Command wallet-watch streams pending Ethereum transactions from a
// JSON-RPC websocket node and reports those sent to a watched wallet.
// Any connection failure is logged and retried after a fixed delay.
//
// Usage:
//
//	wallet-watch --ws-endpoint wss://mainnet.infura.io/ws/v3/KEY --wallet 0x...
//	INFURA_WS=... WALLET_ADDRESS=... wallet-watch --postgres-dsn postgres://...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eth-wallet-watch/internal/clock"
	"eth-wallet-watch/internal/config"
	"eth-wallet-watch/internal/ethereum"
	"eth-wallet-watch/internal/observability"
	"eth-wallet-watch/internal/watcher"
)

var version = "dev"

// shutdownTimeout bounds graceful shutdown after the first signal. It must
// exceed the retry delay, which is never interrupted.
const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "Received signal %v, shutting down...\n", sig)
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "Received second signal %v, forcing immediate shutdown\n", sig)
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			fmt.Fprintf(os.Stderr, "Graceful shutdown timed out after %s, forcing exit\n", shutdownTimeout)
			os.Exit(1)
		case <-done:
		}
	}()

	err := newRootCmd().ExecuteContext(ctx)
	close(done)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFiles   []string
	)

	cmd := &cobra.Command{
		Use:   "wallet-watch",
		Short: "Watch pending Ethereum transactions sent to a wallet",
		Long: `wallet-watch subscribes to newPendingTransactions on an Ethereum node,
resolves each announced hash and reports the transactions whose recipient is
the watched wallet. It reconnects after any failure and stops only when the
node closes the stream cleanly or the process is signalled.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before reading the environment")
	flags := config.RegisterFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath, envFiles, os.LookupEnv)
		if err != nil {
			return err
		}
		flags.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return run(cmd.Context(), cfg, logger, cmd.OutOrStdout(), reg)
	}

	return cmd
}

// newLogger builds a production JSON logger or a development console logger.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.LogFormat == config.FormatJSON {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = level

	return zc.Build()
}

// run wires the sinks and the watcher and blocks until the watch ends.
// A clean end of stream and a signal both return nil.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer, reg *prometheus.Registry) error {
	logger.Info("starting wallet-watch", append([]zap.Field{zap.String("version", version)}, cfg.Fields()...)...)

	metrics := observability.NewMetrics("", reg)

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	reporter, closeSinks, err := buildReporter(ctx, cfg, logger, metrics, stdout)
	if err != nil {
		return err
	}
	defer closeSinks()

	var dialer ethereum.Dialer = ethereum.NewWSDialer(nil, logger)
	if cfg.ResolveEndpoint != "" {
		dialer = ethereum.WithResolver(dialer, ethereum.NewHTTPResolver(cfg.ResolveEndpoint))
	}

	w, err := watcher.New(watcher.Options{
		Dialer:   dialer,
		Endpoint: cfg.WSEndpoint,
		Target:   cfg.Target(),
		Reporter: reporter,
		Policy: watcher.Policy{
			RetryDelay:  cfg.RetryDelay,
			MaxAttempts: cfg.MaxAttempts,
		},
		Clock:   clock.Real(),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	err = w.Run(ctx)
	stats := w.Stats()
	summary := []zap.Field{
		zap.Int("attempts", stats.Attempts),
		zap.Int("failures", stats.Failures),
		zap.Uint64("references", stats.References),
		zap.Uint64("not_found", stats.NotFound),
		zap.Uint64("matches", stats.Matches),
	}

	switch {
	case err == nil:
		logger.Info("watch terminated", summary...)
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown complete", summary...)
		return nil
	default:
		logger.Error("watch stopped", append(summary, zap.Error(err))...)
		return err
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.HandlerFor(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return srv
}
