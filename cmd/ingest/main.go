package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trident-trader/internal/config"
	"trident-trader/internal/domain"
	"trident-trader/internal/loader"
	"trident-trader/internal/logging"
)

func main() {
	// Parse flags
	mode := flag.String("mode", "gdelt", "Ingestion mode: gdelt or synthetic")
	inputs := flag.String("input", "", "Comma-separated GDELT export files (gdelt mode)")
	output := flag.String("output", "", "Output news file, .csv or .parquet (gdelt mode)")
	bucket := flag.String("bucket", "1h", "News bucket width such as 15m, 1h or 1d; \"0\" keeps one row per event")
	outDir := flag.String("out-dir", "data", "Output directory for bar files (synthetic mode)")
	symbols := flag.String("symbols", "EURUSD,GBPUSD", "Comma-separated symbols (synthetic mode)")
	period := flag.String("period", "1m", "Bar period (synthetic mode)")
	steps := flag.Int("steps", 4320, "Bars per symbol (synthetic mode)")
	seed := flag.Uint64("seed", loader.DefaultSmokeSeed, "Generator seed (synthetic mode)")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	// Setup logger
	logger, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With().Str("cmd", "ingest").Logger()

	switch *mode {
	case "gdelt":
		err = runGDELT(logger, splitList(*inputs), *output, *bucket)
	case "synthetic":
		err = runSynthetic(logger, *outDir, splitList(*symbols), *period, *steps, *seed)
	default:
		err = fmt.Errorf("unknown mode: %s", *mode)
	}
	if err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		os.Exit(1)
	}
}

// runGDELT aggregates GDELT exports into a news intensity series.
func runGDELT(logger zerolog.Logger, inputs []string, output, bucketFlag string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("--input is required for gdelt mode")
	}
	if output == "" {
		return fmt.Errorf("--output is required for gdelt mode")
	}
	var bucket time.Duration
	if bucketFlag != "0" {
		b, err := config.ParseDuration(bucketFlag)
		if err != nil {
			return fmt.Errorf("--bucket: %w", err)
		}
		bucket = b
	}

	var events []loader.GDELTEvent
	for _, path := range inputs {
		rows, err := loader.ReadGDELT(path)
		if err != nil {
			return err
		}
		logger.Info().Str("file", path).Int("rows", len(rows)).Msg("gdelt file read")
		events = append(events, rows...)
	}
	news := loader.GDELTToNews(events, bucket)

	if err := writeNews(output, news); err != nil {
		return err
	}
	logger.Info().
		Int("events", len(events)).
		Int("observations", len(news)).
		Float64("mean_intensity", loader.AggregateIntensity(events)).
		Str("output", output).
		Msg("news series written")
	return nil
}

func writeNews(path string, news []domain.NewsEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return loader.WriteNewsParquet(path, news)
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := loader.WriteNewsCSV(f, news); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return fmt.Errorf("%s: %w", path, loader.ErrUnsupportedFormat)
}

// runSynthetic writes one generated bar file per symbol.
func runSynthetic(logger zerolog.Logger, dir string, symbols []string, periodFlag string, steps int, seed uint64) error {
	if len(symbols) == 0 {
		return fmt.Errorf("--symbols is required for synthetic mode")
	}
	period, err := config.ParseDuration(periodFlag)
	if err != nil {
		return fmt.Errorf("--period: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	streams := loader.GenerateBars(symbols, period, steps, seed)
	for i, symbol := range symbols {
		path := filepath.Join(dir, strings.ToLower(symbol)+".csv")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := loader.WriteCSVBars(f, streams[i]); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info().Str("symbol", symbol).Int("bars", len(streams[i])).Str("file", path).Msg("bars written")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
