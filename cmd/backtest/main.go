package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"trident-trader/internal/loader"
	"trident-trader/internal/logging"
	"trident-trader/internal/observability"
	"trident-trader/internal/pipeline"
)

// Seams replaced in tests.
var (
	openStores   = pipeline.OpenStores
	newPublisher = pipeline.NewPublisher
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command and returns its exit code. Every path returns
// so deferred cleanup runs before the process exits.
func run(args []string, stdout io.Writer) int {
	// Parse flags
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML run config")
	smoke := fs.Bool("smoke", false, "Run on generated bars instead of the configured files")
	smokeSteps := fs.Int("smoke-steps", 0, "Generated bars per symbol (default: three days)")
	seed := fs.Uint64("seed", loader.DefaultSmokeSeed, "Seed for generated bars")
	outputDir := fs.String("output-dir", "runs", "Directory for run artifacts (empty to disable)")
	runID := fs.String("run-id", "", "Run id (default: random UUID)")
	strict := fs.Bool("strict", false, "Abort when input sufficiency checks fail")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	verifyRun := fs.String("verify-run", "", "Replay a stored run (backtest or walk-forward) and compare its decisions instead of running")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := pipeline.LoadConfig(*configPath, *smoke)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	// Setup logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	logger = logger.With().Str("cmd", "backtest").Logger()

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("trident", reg)
	stopMetrics := startMetricsServer(cfg.Metrics.Addr, reg, logger)
	defer stopMetrics()

	stores, closeStores, err := openStores(ctx, cfg, logger, m)
	if err != nil {
		logger.Error().Err(err).Msg("open stores")
		return 1
	}
	defer closeStores()

	p := pipeline.New(cfg, *outputDir).
		WithRunID(*runID).
		WithStores(stores).
		WithLogger(logger).
		WithMetrics(m)
	if *strict {
		p = p.WithStrictSufficiency()
	}
	if *smoke {
		steps := *smokeSteps
		if steps <= 0 {
			if steps, err = pipeline.SmokeSteps(cfg, false); err != nil {
				logger.Error().Err(err).Msg("smoke steps")
				return 1
			}
		}
		p = p.WithSmoke(steps, *seed)
	}

	if *verifyRun != "" {
		report, err := p.VerifyRun(ctx, *verifyRun)
		if err != nil {
			logger.Error().Err(err).Msg("verification failed")
			return 1
		}
		fmt.Fprintf(stdout, "Run %s: %d decisions, %d matched, %d divergent, %d missing, %d extra\n",
			report.RunID, report.Total, report.Matched, report.Divergent, report.Missing, report.Extra)
		for _, r := range report.Results {
			fmt.Fprintf(stdout, "  fold %d %s", r.Key.FoldIndex, r.Key.Ts.Format(time.RFC3339))
			switch {
			case r.Missing:
				fmt.Fprintln(stdout, " missing from replay")
			case r.Extra:
				fmt.Fprintln(stdout, " not in stored log")
			default:
				fmt.Fprintf(stdout, " %v\n", r.Divergences)
			}
		}
		if !report.OK() {
			return 2
		}
		return 0
	}

	pub, err := newPublisher(cfg, logger, m)
	if err != nil {
		logger.Error().Err(err).Msg("create publisher")
		return 1
	}
	if pub != nil {
		defer pub.Close()
		p = p.WithPublisher(pub)
	}

	out, err := p.RunBacktest(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("backtest failed")
		return 1
	}

	stats := out.Folds[0].Stats
	fmt.Fprintf(stdout, "Run %s\n", out.Metadata.RunID)
	fmt.Fprintf(stdout, "  Decisions:     %d\n", out.Metadata.DecisionsLogged)
	fmt.Fprintf(stdout, "  Armed rate:    %.4f\n", out.Report.Gate.ArmedRate)
	fmt.Fprintf(stdout, "  Total return:  %.6f\n", stats.TotalReturn)
	fmt.Fprintf(stdout, "  Max drawdown:  %.6f\n", stats.MaxDrawdown)
	fmt.Fprintf(stdout, "  Fills:         %d\n", stats.Fills)
	if out.OutputDir != "" {
		fmt.Fprintf(stdout, "  Artifacts:     %s\n", out.OutputDir)
	}
	return 0
}

// startMetricsServer serves /metrics until the returned stop function runs.
func startMetricsServer(addr string, reg *prometheus.Registry, logger zerolog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	srv := observability.NewServer(addr, reg)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
