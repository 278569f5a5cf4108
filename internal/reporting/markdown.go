package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	md := r.Metadata

	// Header
	sb.WriteString(fmt.Sprintf("# Run Report: %s\n\n", md.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Kind | %s |\n", md.Kind))
	sb.WriteString(fmt.Sprintf("| Fingerprint | `%s` |\n", md.Fingerprint))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", md.StartedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Finished | %s |\n", md.FinishedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Folds | %d / %d |\n", md.FoldsCompleted, md.FoldsTotal))
	sb.WriteString(fmt.Sprintf("| Decisions Logged | %d |\n", md.DecisionsLogged))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.Checks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Results below are not reliable.\n\n")
		}
	} else if len(r.DataQuality.IntegrityErrors) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}
	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, e := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	// Aggregate
	sb.WriteString("## Out-of-Sample Summary\n\n")
	if a := r.Aggregate; a != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Folds | %d |\n", a.Folds))
		sb.WriteString(fmt.Sprintf("| Positive Folds | %d (%.2f%%) |\n", a.PositiveFolds, a.PositiveRate*100))
		sb.WriteString(fmt.Sprintf("| Return Mean | %.6f |\n", a.ReturnMean))
		sb.WriteString(fmt.Sprintf("| Return Median | %.6f |\n", a.ReturnMedian))
		sb.WriteString(fmt.Sprintf("| Return Stddev | %.6f |\n", a.ReturnStddev))
		sb.WriteString(fmt.Sprintf("| Return P10 / P90 | %.6f / %.6f |\n", a.ReturnP10, a.ReturnP90))
		sb.WriteString(fmt.Sprintf("| Return Min / Max | %.6f / %.6f |\n", a.ReturnMin, a.ReturnMax))
		sb.WriteString(fmt.Sprintf("| Worst Drawdown | %.6f |\n", a.WorstDrawdown))
		sb.WriteString(fmt.Sprintf("| Total Turnover | %.2f |\n", a.TotalTurnover))
		sb.WriteString(fmt.Sprintf("| Mean Armed Rate | %.4f |\n", a.MeanArmedRate))
		sb.WriteString(fmt.Sprintf("| Decisions | %d |\n", a.DecisionsTotal))
	} else {
		sb.WriteString("No completed folds.\n")
	}
	sb.WriteString("\n")

	// Folds
	sb.WriteString("## Folds\n\n")
	if len(r.Folds) > 0 {
		sb.WriteString("| Fold | Test Start | Test End | Decisions | Armed | Return | MaxDD | Turnover | Fills |\n")
		sb.WriteString("|------|------------|----------|-----------|-------|--------|-------|----------|-------|\n")
		for _, f := range r.Folds {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %.4f | %.6f | %.6f | %.2f | %d |\n",
				f.Window.FoldIndex,
				formatTime(f.Window.TestStart), formatTime(f.Window.TestEnd),
				f.DecisionsTest, f.ArmedRateTest,
				f.Stats.TotalReturn, f.Stats.MaxDrawdown, f.Stats.Turnover, f.Stats.Fills))
		}
	} else {
		sb.WriteString("No fold results available.\n")
	}
	sb.WriteString("\n")

	// Gate
	g := r.Gate
	sb.WriteString("## Lambda Gate\n\n")
	if g.Decisions > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Decisions | %d |\n", g.Decisions))
		sb.WriteString(fmt.Sprintf("| Armed | %d (%.2f%%) |\n", g.Armed, g.ArmedRate*100))
		sb.WriteString(fmt.Sprintf("| Lambda Mean | %.4f |\n", g.LambdaMean))
		sb.WriteString(fmt.Sprintf("| Lambda Range | %.4f .. %.4f |\n", g.LambdaMin, g.LambdaMax))
		sb.WriteString(fmt.Sprintf("| MI Stable Rate | %.4f |\n", g.MIStableRate))
		sb.WriteString(fmt.Sprintf("| Fills | %d |\n", g.Fills))
		sb.WriteString(fmt.Sprintf("| Risk Rejections | %d |\n", g.Rejections))
	} else {
		sb.WriteString("No decisions logged.\n")
	}
	sb.WriteString("\n")

	// Operators
	sb.WriteString("## Operator Usage\n\n")
	if len(r.OperatorUsage) > 0 {
		sb.WriteString("| Operator | Decisions | Share | Mean MI | Mean Temperature |\n")
		sb.WriteString("|----------|-----------|-------|---------|------------------|\n")
		for _, o := range r.OperatorUsage {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.4f | %.4f |\n",
				o.Operator, o.Decisions, o.Share, o.MeanMIScore, o.MeanTemperature))
		}
		sb.WriteString("\n")
	}

	// Clusters
	if len(r.Clusters) > 0 {
		sb.WriteString("## Relational Clusters\n\n")
		sb.WriteString("| Cluster | Decisions | Mean Coupling |\n")
		sb.WriteString("|---------|-----------|---------------|\n")
		for _, c := range r.Clusters {
			name := c.Cluster
			if name == "" {
				name = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f |\n", name, c.Decisions, c.MeanCoupling))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
