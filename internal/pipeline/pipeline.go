// Package pipeline runs a configured backtest or walk-forward end to end:
// load inputs, check sufficiency, simulate, then persist, publish and
// write reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trident-trader/internal/backtest"
	"trident-trader/internal/config"
	"trident-trader/internal/domain"
	"trident-trader/internal/loader"
	"trident-trader/internal/observability"
	"trident-trader/internal/replay"
	"trident-trader/internal/reporting"
	"trident-trader/internal/storage"
	"trident-trader/internal/verification"
	"trident-trader/internal/walkforward"
)

var (
	// ErrInsufficientData is returned in strict mode when a sufficiency check fails.
	ErrInsufficientData = errors.New("insufficient input data")

	// ErrFingerprintMismatch is returned when verifying a run recorded under another config.
	ErrFingerprintMismatch = errors.New("config fingerprint differs from recorded run")

	// ErrNoRunStore is returned when verification has no run store.
	ErrNoRunStore = errors.New("run store not configured")
)

// minBacktestMediumBars is the shortest backtest span in medium periods.
const minBacktestMediumBars = 3

// Publisher ships finished decision records.
type Publisher interface {
	Publish(ctx context.Context, decisions []domain.DecisionRecord) error
}

// Outcome is a finished and recorded run.
type Outcome struct {
	Metadata    domain.RunMetadata
	Folds       []domain.FoldResult
	Decisions   []domain.DecisionRecord
	Report      *reporting.Report
	Sufficiency *SufficiencyResult
	OutputDir   string // empty when no artifacts were written
}

// Pipeline wires configuration, inputs and sinks for one run.
type Pipeline struct {
	cfg        *config.Config
	outputDir  string
	smokeSteps int
	smokeSeed  uint64
	strict     bool
	runID      string
	stores     storage.Stores
	publisher  Publisher
	logger     zerolog.Logger
	metrics    *observability.Metrics
	clock      func() time.Time
}

// New creates a pipeline for cfg. Artifacts are written under
// outputDir/<run_id>; an empty outputDir writes nothing.
func New(cfg *config.Config, outputDir string) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    zerolog.Nop(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithSmoke replaces the configured bar files with steps generated bars per symbol.
func (p *Pipeline) WithSmoke(steps int, seed uint64) *Pipeline {
	p.smokeSteps = steps
	p.smokeSeed = seed
	return p
}

// WithStrictSufficiency aborts the run when a sufficiency check fails.
func (p *Pipeline) WithStrictSufficiency() *Pipeline {
	p.strict = true
	return p
}

// WithRunID fixes the run id. The default is a random UUID.
func (p *Pipeline) WithRunID(id string) *Pipeline {
	p.runID = id
	return p
}

// WithStores persists finished runs.
func (p *Pipeline) WithStores(s storage.Stores) *Pipeline {
	p.stores = s
	return p
}

// WithPublisher publishes finished decisions.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline {
	p.publisher = pub
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger zerolog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// WithMetrics sets the Prometheus metrics.
func (p *Pipeline) WithMetrics(m *observability.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// LoadEvents returns the merged, time-ordered input events.
func (p *Pipeline) LoadEvents() ([]replay.Event, error) {
	symbols := p.cfg.Symbols()
	if p.smokeSteps > 0 {
		base, err := p.cfg.BaseResolution()
		if err != nil {
			return nil, fmt.Errorf("clock.base_resolution: %w", err)
		}
		return replay.MergeEvents(loader.GenerateBars(symbols, base, p.smokeSteps, p.smokeSeed), nil), nil
	}

	files, err := p.cfg.DataFiles()
	if err != nil {
		return nil, err
	}
	var news []domain.NewsEvent
	if path := p.cfg.NewsFile(); path != "" {
		news, err = loader.ReadNews(path, loader.NewsOptions{
			Source:          p.cfg.News.Source,
			ColumnTs:        p.cfg.News.ColumnTs,
			ColumnIntensity: p.cfg.News.ColumnIntensity,
		})
		if err != nil {
			return nil, err
		}
	}
	return loader.LoadUniverse(symbols, files, news)
}

// RunBacktest simulates the whole event range once.
func (p *Pipeline) RunBacktest(ctx context.Context) (*Outcome, error) {
	began := time.Now()
	btCfg, fingerprint, err := p.prepare()
	if err != nil {
		return nil, err
	}
	events, err := p.LoadEvents()
	if err != nil {
		return nil, err
	}
	suff, err := p.checkSufficiency(ctx, events, minBacktestMediumBars*btCfg.Engine.Periods.Medium)
	if err != nil {
		return nil, err
	}

	runID := p.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With().Str("run_id", runID).Logger()
	startedAt := p.clock()

	res, err := backtest.NewRunner(replay.NewRunner(),
		backtest.WithRunID(runID),
		backtest.WithLogger(logger),
		backtest.WithMetrics(p.metrics),
	).RunAll(ctx, btCfg, events)
	if err != nil {
		p.metrics.RecordRun(domain.RunKindBacktest, "error", time.Since(began).Seconds())
		return nil, fmt.Errorf("backtest: %w", err)
	}
	logger.Info().
		Int("events", len(events)).
		Int("decisions", len(res.Decisions)).
		Float64("return", res.Stats.TotalReturn).
		Bool("kill_switch", res.KillSwitch).
		Msg("backtest complete")

	md := domain.RunMetadata{
		RunID:           runID,
		Kind:            domain.RunKindBacktest,
		Fingerprint:     fingerprint,
		StartedAt:       startedAt,
		FinishedAt:      p.clock(),
		FoldsTotal:      1,
		FoldsCompleted:  1,
		DecisionsLogged: len(res.Decisions),
	}
	out, err := p.finish(ctx, md, []domain.FoldResult{res.FoldResult(runID, len(events))}, res.Decisions, suff)
	p.recordRun(md.Kind, began, err)
	return out, err
}

// RunWalkForward simulates rolling train/test folds over the event range.
func (p *Pipeline) RunWalkForward(ctx context.Context) (*Outcome, error) {
	began := time.Now()
	btCfg, fingerprint, err := p.prepare()
	if err != nil {
		return nil, err
	}
	train, test, step, err := p.cfg.WalkForwardDurations()
	if err != nil {
		return nil, err
	}
	events, err := p.LoadEvents()
	if err != nil {
		return nil, err
	}
	suff, err := p.checkSufficiency(ctx, events, train+test)
	if err != nil {
		return nil, err
	}

	windows, err := foldWindows(events, train, test, step)
	if err != nil {
		return nil, err
	}

	startedAt := p.clock()
	summary, err := p.walkForwardRunner(btCfg, fingerprint).Run(ctx, events, windows)
	if err != nil {
		p.metrics.RecordRun(domain.RunKindWalkForward, "error", time.Since(began).Seconds())
		return nil, fmt.Errorf("walk-forward: %w", err)
	}

	md := summary.Metadata
	md.StartedAt, md.FinishedAt = startedAt, p.clock()
	out, err := p.finish(ctx, md, summary.Results(), summary.Decisions(), suff)
	p.recordRun(md.Kind, began, err)
	return out, err
}

// Replay re-simulates the configured inputs for a run of kind and returns
// the decision log. Nothing is persisted, published or written.
func (p *Pipeline) Replay(ctx context.Context, kind string) ([]domain.DecisionRecord, error) {
	btCfg, fingerprint, err := p.prepare()
	if err != nil {
		return nil, err
	}
	events, err := p.LoadEvents()
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.RunKindBacktest:
		res, err := backtest.NewRunner(replay.NewRunner(),
			backtest.WithRunID(p.runID),
			backtest.WithLogger(p.logger),
		).RunAll(ctx, btCfg, events)
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		return res.Decisions, nil
	case domain.RunKindWalkForward:
		train, test, step, err := p.cfg.WalkForwardDurations()
		if err != nil {
			return nil, err
		}
		windows, err := foldWindows(events, train, test, step)
		if err != nil {
			return nil, err
		}
		summary, err := p.walkForwardRunner(btCfg, fingerprint).Run(ctx, events, windows)
		if err != nil {
			return nil, fmt.Errorf("walk-forward: %w", err)
		}
		return summary.Decisions(), nil
	}
	return nil, fmt.Errorf("unknown run kind %q", kind)
}

// VerifyRun replays the stored run runID under the pipeline's config and
// compares the fresh decision log with the stored one.
func (p *Pipeline) VerifyRun(ctx context.Context, runID string) (*verification.Report, error) {
	if p.stores.Runs == nil {
		return nil, ErrNoRunStore
	}
	md, err := p.stores.Runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	fingerprint, err := p.cfg.Fingerprint()
	if err != nil {
		return nil, err
	}
	if md.Fingerprint != fingerprint {
		return nil, fmt.Errorf("%w: %s", ErrFingerprintMismatch, runID)
	}

	verifier := verification.NewReplayVerifier(p.stores.Decisions, func(ctx context.Context) ([]domain.DecisionRecord, error) {
		return p.Replay(ctx, md.Kind)
	})
	report, err := verifier.VerifyRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("run_id", runID).
		Int("decisions", report.Total).
		Int("matched", report.Matched).
		Int("divergent", report.Divergent).
		Int("missing", report.Missing).
		Int("extra", report.Extra).
		Msg("replay verification complete")
	return report, nil
}

func foldWindows(events []replay.Event, train, test, step time.Duration) ([]domain.FoldWindow, error) {
	first, last, ok := walkforward.Span(events)
	if !ok {
		return nil, fmt.Errorf("%w: no events", ErrInsufficientData)
	}
	windows, err := walkforward.BuildWindows(first, last, train, test, step)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, walkforward.ErrNoWindows
	}
	return windows, nil
}

func (p *Pipeline) walkForwardRunner(btCfg backtest.Config, fingerprint string) *walkforward.Runner {
	opts := []walkforward.Option{
		walkforward.WithFingerprint(fingerprint),
		walkforward.WithLogger(p.logger),
		walkforward.WithMetrics(p.metrics),
		walkforward.WithConcurrency(p.cfg.WalkForward.Concurrency),
	}
	if p.runID != "" {
		opts = append(opts, walkforward.WithRunID(p.runID))
	}
	return walkforward.NewRunner(btCfg, opts...)
}

func (p *Pipeline) prepare() (backtest.Config, string, error) {
	btCfg, err := p.cfg.Backtest()
	if err != nil {
		return backtest.Config{}, "", err
	}
	fingerprint, err := p.cfg.Fingerprint()
	if err != nil {
		return backtest.Config{}, "", err
	}
	return btCfg, fingerprint, nil
}

func (p *Pipeline) checkSufficiency(ctx context.Context, events []replay.Event, minSpan time.Duration) (*SufficiencyResult, error) {
	suff, err := CheckSufficiency(ctx, events, Requirements{
		Symbols:          p.cfg.Symbols(),
		MinBarsPerSymbol: 1,
		MinSpan:          minSpan,
		ExpectNews:       p.smokeSteps == 0 && p.cfg.NewsFile() != "",
	})
	if err != nil {
		return nil, err
	}
	if failed := suff.Failed(); len(failed) > 0 || len(suff.Errors) > 0 {
		p.logger.Warn().Strs("failed_checks", failed).Strs("integrity_errors", suff.Errors).Msg("input data insufficient")
		if p.strict {
			return nil, fmt.Errorf("%w: %s", ErrInsufficientData, strings.Join(append(failed, suff.Errors...), "; "))
		}
	}
	return suff, nil
}

// finish persists, publishes and renders a completed run.
func (p *Pipeline) finish(ctx context.Context, md domain.RunMetadata, folds []domain.FoldResult, decisions []domain.DecisionRecord, suff *SufficiencyResult) (*Outcome, error) {
	report := reporting.Build(md, folds, decisions, p.clock())
	report.DataQuality = suff.Section()
	out := &Outcome{
		Metadata:    md,
		Folds:       folds,
		Decisions:   decisions,
		Report:      report,
		Sufficiency: suff,
	}

	if p.stores.Runs != nil {
		prior, err := p.stores.Runs.GetByFingerprint(ctx, md.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("lookup prior runs: %w", err)
		}
		if len(prior) > 0 {
			p.logger.Info().
				Str("run_id", md.RunID).
				Int("prior_runs", len(prior)).
				Str("last_run_id", prior[len(prior)-1].RunID).
				Msg("config fingerprint already recorded")
		}
	}
	if err := storage.SaveRun(ctx, p.stores, md, folds, decisions); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	if p.publisher != nil && len(decisions) > 0 {
		if err := p.publisher.Publish(ctx, decisions); err != nil {
			return nil, err
		}
	}

	if p.outputDir != "" {
		out.OutputDir = filepath.Join(p.outputDir, md.RunID)
		err := reporting.WriteRunArtifacts(out.OutputDir, reporting.Artifacts{
			Config:    reporting.FrozenConfig{Fingerprint: md.Fingerprint, Config: p.cfg.Redacted()},
			Metadata:  md,
			Folds:     folds,
			Decisions: decisions,
			Report:    report,
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Pipeline) recordRun(kind string, began time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordRun(kind, status, time.Since(began).Seconds())
}
