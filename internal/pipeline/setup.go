package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"trident-trader/internal/config"
	"trident-trader/internal/observability"
	"trident-trader/internal/publish"
	"trident-trader/internal/storage"
	chstore "trident-trader/internal/storage/clickhouse"
	"trident-trader/internal/storage/migrations"
	pgstore "trident-trader/internal/storage/postgres"
)

// OpenStores connects the configured backends and applies migrations.
// Postgres holds runs and fold results, ClickHouse holds decisions.
// The returned close function releases every opened connection.
func OpenStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *observability.Metrics) (storage.Stores, func(), error) {
	var (
		stores  storage.Stores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn, pgstore.WithMetrics(m))
		if err != nil {
			return storage.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return storage.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Runs = pgstore.NewRunStore(pool)
		stores.Folds = pgstore.NewFoldResultStore(pool)
		logger.Info().Msg("postgres store ready")
	}

	if dsn := cfg.Storage.ClickHouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn, chstore.WithMetrics(m))
		if err != nil {
			closeAll()
			return storage.Stores{}, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() {
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Msg("close clickhouse")
			}
		})
		stores.Decisions = chstore.NewDecisionStore(conn)
		logger.Info().Msg("clickhouse store ready")
	}

	return stores, closeAll, nil
}

// NewPublisher builds the Kafka decision publisher, or returns nil when no
// brokers are configured.
func NewPublisher(cfg *config.Config, logger zerolog.Logger, m *observability.Metrics) (*publish.KafkaPublisher, error) {
	if len(cfg.Publish.Brokers) == 0 {
		return nil, nil
	}
	return publish.NewKafkaPublisher(publish.Config{
		Brokers:      cfg.Publish.Brokers,
		Topic:        cfg.Publish.Topic,
		BatchSize:    cfg.Publish.BatchSize,
		BatchTimeout: cfg.Publish.BatchTimeout,
		Compression:  cfg.Publish.Compression,
	}, publish.WithLogger(logger), publish.WithMetrics(m))
}

// SmokeSymbols are the universe of a smoke run without a config file.
var SmokeSymbols = []string{"EURUSD", "GBPUSD", "USDJPY"}

// LoadConfig reads path with environment overrides. With smoke set and no
// path, it returns the defaults over SmokeSymbols.
func LoadConfig(path string, smoke bool) (*config.Config, error) {
	if path == "" {
		if !smoke {
			return nil, fmt.Errorf("--config is required unless --smoke is set")
		}
		cfg := config.Default()
		for _, s := range SmokeSymbols {
			cfg.Universe.Streams = append(cfg.Universe.Streams, config.Stream{Symbol: s})
		}
		cfg.ApplyEnv(os.Getenv)
		return cfg, cfg.Validate()
	}
	return config.LoadWithEnv(path)
}

// SmokeSteps returns how many base bars a smoke run generates: three days
// for a backtest, or enough for three walk-forward folds.
func SmokeSteps(cfg *config.Config, walkForward bool) (int, error) {
	base, err := cfg.BaseResolution()
	if err != nil {
		return 0, err
	}
	span := 72 * time.Hour
	if walkForward {
		train, test, step, err := cfg.WalkForwardDurations()
		if err != nil {
			return 0, err
		}
		span = train + test + 2*step
	}
	return int(span/base) + 1, nil
}
