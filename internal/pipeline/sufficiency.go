package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trident-trader/internal/replay"
	"trident-trader/internal/reporting"
)

// Requirements are the input thresholds checked before a run.
type Requirements struct {
	Symbols          []string
	MinBarsPerSymbol int
	MinSpan          time.Duration
	ExpectNews       bool
}

// SufficiencyResult contains the check outcomes and integrity errors.
type SufficiencyResult struct {
	Checks  []reporting.QualityCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// Section converts r to the report's data quality section.
func (r *SufficiencyResult) Section() reporting.DataQualitySection {
	return reporting.DataQualitySection{
		Checks:          r.Checks,
		AllChecksPassed: r.AllPass && len(r.Errors) == 0,
		IntegrityErrors: r.Errors,
	}
}

// Failed returns the names of failed checks.
func (r *SufficiencyResult) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, c.Name)
		}
	}
	return out
}

// CheckSufficiency validates that events can support a run.
func CheckSufficiency(ctx context.Context, events []replay.Event, req Requirements) (*SufficiencyResult, error) {
	result := &SufficiencyResult{AllPass: true}
	add := func(c reporting.QualityCheck) {
		result.Checks = append(result.Checks, c)
		if !c.Pass {
			result.AllPass = false
		}
	}

	bars := make(map[string]int, len(req.Symbols))
	seen := make(map[barKey]bool)
	news := 0
	for _, ev := range events {
		switch ev.Type {
		case replay.EventTypeBar:
			bars[ev.Bar.Symbol]++
			k := barKey{ev.Bar.Symbol, ev.Timestamp}
			if seen[k] {
				result.Errors = append(result.Errors, fmt.Sprintf("duplicate bar %s at %s", k.symbol, k.ts.Format(time.RFC3339)))
			}
			seen[k] = true
		case replay.EventTypeNews:
			news++
		}
	}

	add(checkSymbols(req.Symbols, bars))
	add(checkBarsPerSymbol(req, bars))
	add(checkSpan(events, req.MinSpan))
	if req.ExpectNews {
		add(reporting.QualityCheck{
			Name:      "News observations",
			Threshold: ">= 1",
			Actual:    fmt.Sprintf("%d", news),
			Pass:      news > 0,
		})
	}

	replayable, err := checkReplayability(ctx, events)
	if err != nil {
		return nil, err
	}
	add(replayable)
	return result, nil
}

type barKey struct {
	symbol string
	ts     time.Time
}

func checkSymbols(symbols []string, bars map[string]int) reporting.QualityCheck {
	present := 0
	for _, s := range symbols {
		if bars[s] > 0 {
			present++
		}
	}
	return reporting.QualityCheck{
		Name:      "Symbols with bars",
		Threshold: fmt.Sprintf("= %d", len(symbols)),
		Actual:    fmt.Sprintf("%d", present),
		Pass:      present == len(symbols),
	}
}

func checkBarsPerSymbol(req Requirements, bars map[string]int) reporting.QualityCheck {
	least := 0
	for i, s := range req.Symbols {
		if i == 0 || bars[s] < least {
			least = bars[s]
		}
	}
	return reporting.QualityCheck{
		Name:      "Bars per symbol (min)",
		Threshold: fmt.Sprintf(">= %d", req.MinBarsPerSymbol),
		Actual:    fmt.Sprintf("%d", least),
		Pass:      least >= req.MinBarsPerSymbol,
	}
}

func checkSpan(events []replay.Event, minSpan time.Duration) reporting.QualityCheck {
	var span time.Duration
	if len(events) > 0 {
		span = events[len(events)-1].Timestamp.Sub(events[0].Timestamp)
	}
	return reporting.QualityCheck{
		Name:      "Event span",
		Threshold: fmt.Sprintf(">= %s", minSpan),
		Actual:    span.String(),
		Pass:      span >= minSpan,
	}
}

// checkReplayability replays events through a strict runner.
func checkReplayability(ctx context.Context, events []replay.Event) (reporting.QualityCheck, error) {
	check := reporting.QualityCheck{Name: "Replayability", Threshold: "non-decreasing timestamps", Actual: "ok", Pass: true}
	err := replay.NewRunner(replay.WithStrictOrdering()).RunAll(ctx, events, noopEngine{})
	switch {
	case errors.Is(err, replay.ErrInvalidOrdering):
		check.Actual, check.Pass = "out of order", false
	case err != nil:
		return check, err
	}
	return check, nil
}

type noopEngine struct{}

func (noopEngine) OnEvent(context.Context, *replay.Event) error { return nil }
