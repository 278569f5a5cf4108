package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/metrics"
	"trident-trader/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore      storage.RunStore
	foldStore     storage.FoldResultStore
	decisionStore storage.DecisionStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runs storage.RunStore, folds storage.FoldResultStore, decisions storage.DecisionStore) *Generator {
	return &Generator{
		runStore:      runs,
		foldStore:     folds,
		decisionStore: decisions,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads runID from the stores and builds its report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	md, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	folds, err := g.foldStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load folds: %w", err)
	}
	var decisions []*domain.DecisionRecord
	if g.decisionStore != nil {
		decisions, err = g.decisionStore.GetByRunID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load decisions: %w", err)
		}
	}
	return Build(*md, deref(folds), deref(decisions), g.now()), nil
}

func deref[T any](in []*T) []T {
	out := make([]T, len(in))
	for i, p := range in {
		out[i] = *p
	}
	return out
}

// Build assembles a report from in-memory run output.
func Build(md domain.RunMetadata, folds []domain.FoldResult, decisions []domain.DecisionRecord, now time.Time) *Report {
	r := &Report{
		GeneratedAt:   now,
		Metadata:      md,
		Folds:         folds,
		Gate:          summarizeGate(decisions),
		OperatorUsage: operatorUsage(decisions),
		Clusters:      clusterUsage(decisions),
	}
	if agg, err := metrics.AggregateFolds(folds); err == nil {
		r.Aggregate = &agg
	}
	return r
}

func summarizeGate(decisions []domain.DecisionRecord) GateSummary {
	var s GateSummary
	if len(decisions) == 0 {
		return s
	}
	s.Decisions = len(decisions)
	s.LambdaMin, s.LambdaMax = math.Inf(1), math.Inf(-1)
	var lambdaSum float64
	stable := 0
	for _, d := range decisions {
		if d.Armed {
			s.Armed++
		}
		if d.MIStable {
			stable++
		}
		lambdaSum += d.LambdaGlobal
		s.LambdaMin = min(s.LambdaMin, d.LambdaGlobal)
		s.LambdaMax = max(s.LambdaMax, d.LambdaGlobal)
		s.Fills += d.Fills
		s.Rejections += d.Rejections
	}
	n := float64(len(decisions))
	s.ArmedRate = float64(s.Armed) / n
	s.LambdaMean = lambdaSum / n
	s.MIStableRate = float64(stable) / n
	return s
}

// operatorUsage builds per-operator rows sorted by decisions desc, then name.
func operatorUsage(decisions []domain.DecisionRecord) []OperatorUsageRow {
	type acc struct {
		n        int
		mi, temp float64
	}
	byOp := make(map[string]*acc)
	for _, d := range decisions {
		a := byOp[d.Operator]
		if a == nil {
			a = &acc{}
			byOp[d.Operator] = a
		}
		a.n++
		a.mi += d.MIScore
		a.temp += d.Temperature
	}

	rows := make([]OperatorUsageRow, 0, len(byOp))
	for op, a := range byOp {
		rows = append(rows, OperatorUsageRow{
			Operator:        op,
			Decisions:       a.n,
			Share:           float64(a.n) / float64(len(decisions)),
			MeanMIScore:     a.mi / float64(a.n),
			MeanTemperature: a.temp / float64(a.n),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Decisions != rows[j].Decisions {
			return rows[i].Decisions > rows[j].Decisions
		}
		return rows[i].Operator < rows[j].Operator
	})
	return rows
}

func clusterUsage(decisions []domain.DecisionRecord) []ClusterRow {
	counts := make(map[string]int)
	coupling := make(map[string]float64)
	for _, d := range decisions {
		counts[d.RelationalCluster]++
		coupling[d.RelationalCluster] += d.RelationalCoupling
	}
	rows := make([]ClusterRow, 0, len(counts))
	for c, n := range counts {
		rows = append(rows, ClusterRow{Cluster: c, Decisions: n, MeanCoupling: coupling[c] / float64(n)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Cluster < rows[j].Cluster })
	return rows
}
