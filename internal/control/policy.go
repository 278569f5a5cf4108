package control

import (
	"errors"

	"trident-trader/internal/regime"
	"trident-trader/internal/selector"
)

// ErrNoCandidates is returned when there is no operator to choose from.
var ErrNoCandidates = errors.New("no operator candidates")

// Policy bonuses.
const (
	ShockBreakoutBonus  = 0.15
	CalmReversionBonus  = 0.10
	ResetFlatBonus      = 1.0
	ExploreBonus        = 0.05
	ExploreBonusTrigger = 0.6
)

// PolicyContext conditions the operator choice.
type PolicyContext struct {
	Regime          string
	Zone            string
	ExplorePressure float64
}

// SelectOperator returns the operator with the highest score after context
// bonuses: breakout in a shock regime, mean reversion in a calm one, flat in
// the reset zone. Ties go to the earlier operator.
func SelectOperator(ctx PolicyContext, operators []string, scores []float64) (string, error) {
	if len(operators) == 0 || len(operators) != len(scores) {
		return "", ErrNoCandidates
	}
	best, bestScore := "", 0.0
	for i, op := range operators {
		s := scores[i]
		switch {
		case ctx.Regime == regime.Shock && op == selector.OperatorBreakout:
			s += ShockBreakoutBonus
		case ctx.Regime == regime.Calm && op == selector.OperatorMeanReversion:
			s += CalmReversionBonus
		}
		if ctx.Zone == ZoneReset && op == selector.OperatorFlat {
			s += ResetFlatBonus
		}
		if ctx.ExplorePressure > ExploreBonusTrigger {
			s += ExploreBonus
		}
		if best == "" || s > bestScore {
			best, bestScore = op, s
		}
	}
	return best, nil
}
