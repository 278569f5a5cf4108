package walkforward

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trident-trader/internal/backtest"
	"trident-trader/internal/domain"
	"trident-trader/internal/idhash"
	"trident-trader/internal/metrics"
	"trident-trader/internal/observability"
	"trident-trader/internal/replay"
)

// Fold is a completed fold with its out-of-sample decisions.
type Fold struct {
	Result    domain.FoldResult
	Decisions []domain.DecisionRecord // test window only
}

// Summary is the outcome of a walk-forward run.
type Summary struct {
	Metadata  domain.RunMetadata
	Folds     []Fold                 // completed folds in fold order
	Aggregate *metrics.FoldAggregate // nil when no fold completed
}

// Decisions returns all out-of-sample decisions in fold order.
func (s *Summary) Decisions() []domain.DecisionRecord {
	var out []domain.DecisionRecord
	for _, f := range s.Folds {
		out = append(out, f.Decisions...)
	}
	return out
}

// Results returns the fold results in fold order.
func (s *Summary) Results() []domain.FoldResult {
	out := make([]domain.FoldResult, len(s.Folds))
	for i, f := range s.Folds {
		out[i] = f.Result
	}
	return out
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the number of folds simulated at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRunID fixes the run id. The default is a random UUID.
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

// WithFingerprint fixes the config fingerprint. The default hashes the
// simulation config.
func WithFingerprint(fp string) Option {
	return func(r *Runner) { r.fingerprint = fp }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner simulates every fold with fresh state.
type Runner struct {
	cfg         backtest.Config
	concurrency int
	runID       string
	fingerprint string
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewRunner creates a walk-forward runner for cfg.
func NewRunner(cfg backtest.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:         cfg,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run simulates each window over its train and test events. Folds run in
// parallel; results are kept in fold order. Folds with an empty train or
// test slice, or without test-window decisions, are skipped.
func (r *Runner) Run(ctx context.Context, events []replay.Event, windows []domain.FoldWindow) (*Summary, error) {
	startedAt := time.Now().UTC()

	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	fingerprint := r.fingerprint
	if fingerprint == "" {
		fp, err := idhash.ConfigFingerprint(r.cfg)
		if err != nil {
			return nil, fmt.Errorf("fingerprint config: %w", err)
		}
		fingerprint = fp
	}
	logger := r.logger.With().Str("run_id", runID).Logger()

	bt := backtest.NewRunner(replay.NewRunner(),
		backtest.WithRunID(runID),
		backtest.WithLogger(logger),
		backtest.WithMetrics(r.metrics),
	)

	results := make([]*Fold, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, w := range windows {
		g.Go(func() error {
			fold, err := r.runFold(gctx, bt, runID, events, w, logger)
			if err != nil {
				return fmt.Errorf("fold %d: %w", w.FoldIndex, err)
			}
			results[i] = fold
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Metadata: domain.RunMetadata{
			RunID:       runID,
			Kind:        domain.RunKindWalkForward,
			Fingerprint: fingerprint,
			StartedAt:   startedAt,
			FoldsTotal:  len(windows),
		},
	}
	for _, fold := range results {
		if fold == nil {
			continue
		}
		summary.Folds = append(summary.Folds, *fold)
		summary.Metadata.DecisionsLogged += len(fold.Decisions)
	}
	summary.Metadata.FoldsCompleted = len(summary.Folds)
	if agg, err := metrics.AggregateFolds(summary.Results()); err == nil {
		summary.Aggregate = &agg
	}
	summary.Metadata.FinishedAt = time.Now().UTC()

	logger.Info().
		Int("folds_total", summary.Metadata.FoldsTotal).
		Int("folds_completed", summary.Metadata.FoldsCompleted).
		Int("decisions", summary.Metadata.DecisionsLogged).
		Msg("walk-forward complete")
	return summary, nil
}

func (r *Runner) runFold(ctx context.Context, bt *backtest.Runner, runID string, events []replay.Event, w domain.FoldWindow, logger zerolog.Logger) (*Fold, error) {
	began := time.Now()
	train, test := SplitEvents(events, w)
	if len(train) == 0 || len(test) == 0 {
		logger.Debug().Int("fold", w.FoldIndex).Int("train", len(train)).Int("test", len(test)).Msg("fold skipped: empty slice")
		return nil, nil
	}

	combined := make([]replay.Event, 0, len(train)+len(test))
	combined = append(combined, train...)
	combined = append(combined, test...)

	res, err := bt.RunAll(ctx, r.cfg, combined, backtest.WithFoldIndex(w.FoldIndex))
	if err != nil {
		return nil, err
	}

	var decisions []domain.DecisionRecord
	armed := 0
	for _, d := range res.Decisions {
		if inRange(d.Ts, w.TestStart, w.TestEnd) {
			decisions = append(decisions, d)
			if d.Armed {
				armed++
			}
		}
	}
	if len(decisions) == 0 {
		logger.Debug().Int("fold", w.FoldIndex).Msg("fold skipped: no test decisions")
		return nil, nil
	}

	stats := metrics.Summarize(testCurve(res.EquityCurve, w), metrics.FillsInWindow(res.Fills, w.TestStart, w.TestEnd))
	r.metrics.RecordFold(time.Since(began).Seconds())
	logger.Debug().
		Int("fold", w.FoldIndex).
		Int("decisions", len(decisions)).
		Float64("return", stats.TotalReturn).
		Msg("fold complete")

	return &Fold{
		Result: domain.FoldResult{
			RunID:         runID,
			Window:        w,
			EventsTrain:   len(train),
			EventsTest:    len(test),
			DecisionsTest: len(decisions),
			ArmedRateTest: float64(armed) / float64(len(decisions)),
			Stats:         stats,
		},
		Decisions: decisions,
	}, nil
}

// testCurve returns the test-window equity points preceded by the last
// train-window point, so the first test step's PnL counts toward the fold.
func testCurve(curve []domain.EquityPoint, w domain.FoldWindow) []domain.EquityPoint {
	out := metrics.InWindow(curve, w.TestStart, w.TestEnd)
	var base *domain.EquityPoint
	for i := range curve {
		if curve[i].Ts.Before(w.TestStart) {
			base = &curve[i]
		}
	}
	if base == nil {
		return out
	}
	return append([]domain.EquityPoint{*base}, out...)
}
