// Package verification replays a stored run and checks that every logged
// decision is reproduced field by field.
package verification

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trident-trader/internal/domain"
)

// FloatTolerance is the absolute tolerance for float comparisons.
const FloatTolerance = 1e-7

// FieldDivergence is a mismatch between a stored and a replayed value.
type FieldDivergence struct {
	Field    string
	Expected any // stored value
	Actual   any // replayed value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: stored=%v replayed=%v", d.Field, d.Expected, d.Actual)
}

// DecisionKey identifies a decision within a run.
type DecisionKey struct {
	FoldIndex int
	Ts        time.Time
}

func keyOf(d domain.DecisionRecord) DecisionKey {
	return DecisionKey{FoldIndex: d.FoldIndex, Ts: d.Ts.UTC()}
}

// Result is the verification of one decision.
type Result struct {
	Key         DecisionKey
	Match       bool
	Missing     bool // stored but not replayed
	Extra       bool // replayed but not stored
	Divergences []FieldDivergence
}

// Report summarizes a verified run.
type Report struct {
	RunID     string
	Total     int // stored decisions
	Matched   int
	Divergent int
	Missing   int
	Extra     int
	Results   []Result // only non-matching decisions
}

// OK reports whether the replay reproduced the stored log exactly.
func (r *Report) OK() bool {
	return r.Divergent == 0 && r.Missing == 0 && r.Extra == 0
}

// CompareDecisions returns the fields where replayed differs from stored.
// The run id is ignored.
func CompareDecisions(stored, replayed domain.DecisionRecord) []FieldDivergence {
	var out []FieldDivergence
	exact := func(field string, a, b any) {
		if a != b {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}
	approx := func(field string, a, b float64) {
		if !floatEquals(a, b) {
			out = append(out, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}

	exact("FoldIndex", stored.FoldIndex, replayed.FoldIndex)
	if !stored.Ts.Equal(replayed.Ts) {
		out = append(out, FieldDivergence{Field: "Ts", Expected: stored.Ts, Actual: replayed.Ts})
	}

	exact("Armed", stored.Armed, replayed.Armed)
	approx("LambdaGlobal", stored.LambdaGlobal, replayed.LambdaGlobal)
	exact("GoodStreams", stored.GoodStreams, replayed.GoodStreams)

	exact("Operator", stored.Operator, replayed.Operator)
	approx("MIScore", stored.MIScore, replayed.MIScore)
	exact("MIStable", stored.MIStable, replayed.MIStable)
	approx("Temperature", stored.Temperature, replayed.Temperature)
	approx("PolicyEntropy", stored.PolicyEntropy, replayed.PolicyEntropy)

	exact("RelationalCluster", stored.RelationalCluster, replayed.RelationalCluster)
	approx("RelationalCoupling", stored.RelationalCoupling, replayed.RelationalCoupling)
	exact("RelationalStateKey", stored.RelationalStateKey, replayed.RelationalStateKey)

	exact("SRStateID", stored.SRStateID, replayed.SRStateID)
	approx("SRUncertainty", stored.SRUncertainty, replayed.SRUncertainty)
	approx("SRTransitionEntropy", stored.SRTransitionEntropy, replayed.SRTransitionEntropy)
	approx("SRTDErrorNorm", stored.SRTDErrorNorm, replayed.SRTDErrorNorm)
	exact("SRLearned", stored.SRLearned, replayed.SRLearned)

	exact("Regime", stored.Regime, replayed.Regime)
	exact("Zone", stored.Zone, replayed.Zone)
	approx("Load", stored.Load, replayed.Load)
	approx("StructuralMismatch", stored.StructuralMismatch, replayed.StructuralMismatch)
	approx("RiskMultiplier", stored.RiskMultiplier, replayed.RiskMultiplier)
	exact("Type2Trigger", stored.Type2Trigger, replayed.Type2Trigger)
	exact("MIFalling", stored.MIFalling, replayed.MIFalling)
	exact("ControlMode", stored.ControlMode, replayed.ControlMode)
	approx("ExplorePressure", stored.ExplorePressure, replayed.ExplorePressure)
	exact("PolicyHint", stored.PolicyHint, replayed.PolicyHint)

	approx("Equity", stored.Equity, replayed.Equity)
	approx("DailyPnL", stored.DailyPnL, replayed.DailyPnL)
	exact("Fills", stored.Fills, replayed.Fills)
	exact("Rejections", stored.Rejections, replayed.Rejections)
	return out
}

// VerifyDecisions matches stored and replayed decisions by fold and
// timestamp and compares each pair.
func VerifyDecisions(runID string, stored, replayed []domain.DecisionRecord) *Report {
	report := &Report{RunID: runID, Total: len(stored)}

	byKey := make(map[DecisionKey]domain.DecisionRecord, len(replayed))
	for _, d := range replayed {
		byKey[keyOf(d)] = d
	}
	seen := make(map[DecisionKey]bool, len(stored))
	for _, s := range stored {
		key := keyOf(s)
		seen[key] = true
		r, ok := byKey[key]
		if !ok {
			report.Missing++
			report.Results = append(report.Results, Result{Key: key, Missing: true})
			continue
		}
		if div := CompareDecisions(s, r); len(div) > 0 {
			report.Divergent++
			report.Results = append(report.Results, Result{Key: key, Divergences: div})
			continue
		}
		report.Matched++
	}
	for _, r := range replayed {
		if key := keyOf(r); !seen[key] {
			report.Extra++
			report.Results = append(report.Results, Result{Key: key, Extra: true})
		}
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		a, b := report.Results[i].Key, report.Results[j].Key
		if a.FoldIndex != b.FoldIndex {
			return a.FoldIndex < b.FoldIndex
		}
		return a.Ts.Before(b.Ts)
	})
	return report
}

func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}
