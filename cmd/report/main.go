package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"trident-trader/internal/config"
	"trident-trader/internal/domain"
	"trident-trader/internal/logging"
	"trident-trader/internal/observability"
	"trident-trader/internal/pipeline"
	"trident-trader/internal/reporting"
)

func main() {
	// Parse flags
	runID := flag.String("run-id", "", "Run id to report (required)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (default: $"+config.EnvPostgresDSN+")")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (default: $"+config.EnvClickHouseDSN+")")
	outputDir := flag.String("output-dir", "reports", "Directory for the regenerated report")
	flag.Parse()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.ApplyEnv(os.Getenv)
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickHouseDSN = *clickhouseDSN
	}
	if cfg.Storage.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: a PostgreSQL DSN is required to load runs")
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With().Str("cmd", "report").Str("run_id", *runID).Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := observability.NewMetrics("trident", prometheus.NewRegistry())
	stores, closeStores, err := pipeline.OpenStores(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer closeStores()

	report, err := reporting.NewGenerator(stores.Runs, stores.Folds, stores.Decisions).Generate(ctx, *runID)
	if err != nil {
		logger.Error().Err(err).Msg("generate report")
		closeStores()
		os.Exit(1)
	}

	var decisions []domain.DecisionRecord
	if stores.Decisions != nil {
		stored, err := stores.Decisions.GetByRunID(ctx, *runID)
		if err != nil {
			logger.Error().Err(err).Msg("load decisions")
			closeStores()
			os.Exit(1)
		}
		decisions = make([]domain.DecisionRecord, len(stored))
		for i, d := range stored {
			decisions[i] = *d
		}
	}

	dir := filepath.Join(*outputDir, *runID)
	if err := writeReport(dir, report, decisions); err != nil {
		logger.Error().Err(err).Msg("write report")
		closeStores()
		os.Exit(1)
	}

	fmt.Printf("Report for run %s generated:\n", *runID)
	fmt.Printf("  - %s\n", filepath.Join(dir, reporting.FileReport))
	fmt.Printf("  - %s\n", filepath.Join(dir, reporting.FileFoldSummary))
	if stores.Decisions != nil {
		fmt.Printf("  - %s (%d decisions)\n", filepath.Join(dir, reporting.FileDecisions), len(decisions))
	}
}

func writeReport(dir string, report *reporting.Report, decisions []domain.DecisionRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reporting.FileReport), []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reporting.FileFoldSummary), []byte(reporting.RenderFoldSummaryCSV(report.Folds)), 0o644); err != nil {
		return fmt.Errorf("write fold summary: %w", err)
	}
	if decisions == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(dir, reporting.FileDecisions))
	if err != nil {
		return fmt.Errorf("create decisions: %w", err)
	}
	if err := reporting.WriteDecisionsCSV(f, decisions); err != nil {
		f.Close()
		return fmt.Errorf("write decisions: %w", err)
	}
	return f.Close()
}
