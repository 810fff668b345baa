package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"eth-wallet-watch/internal/config"
	"eth-wallet-watch/internal/observability"
	"eth-wallet-watch/internal/report"
	chstore "eth-wallet-watch/internal/storage/clickhouse"
	"eth-wallet-watch/internal/storage/memory"
	"eth-wallet-watch/internal/storage/migrations"
	pgstore "eth-wallet-watch/internal/storage/postgres"
)

// recentMatches bounds the set of event ids remembered to suppress
// re-announced transactions.
const recentMatches = 10000

// buildReporter assembles the configured sinks: the log (and console),
// an optional CSV file, and one store per configured database. The sinks sit
// behind a bounded set of recently reported ids. The returned func releases
// every sink.
func buildReporter(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, stdout io.Writer) (report.Reporter, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var plain io.Writer
	if cfg.PlainOutput {
		plain = stdout
	}
	sinks := report.Multi{report.NewLogReporter(logger, plain)}

	if cfg.CSVPath != "" {
		f, err := os.OpenFile(cfg.CSVPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv file: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })

		info, err := f.Stat()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("stat csv file: %w", err)
		}
		csvReporter, err := report.NewCSVReporter(f, info.Size() == 0)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, csvReporter)
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		sinks = append(sinks, report.NewStoreReporter(pgstore.NewMatchStore(pool, metrics), logger))
		logger.Info("storing matches in postgres")
	}

	if cfg.ClickhouseDSN != "" {
		if err := chstore.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("init clickhouse: %w", err)
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("init clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		sinks = append(sinks, report.NewStoreReporter(chstore.NewMatchStore(conn, metrics), logger))
		logger.Info("storing matches in clickhouse")
	}

	return report.NewDedupe(memory.NewMatchStore(recentMatches), sinks, logger), closeAll, nil
}
