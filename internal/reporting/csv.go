package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"trident-trader/internal/backtest"
	"trident-trader/internal/domain"
)

var decisionHeader = []string{
	"run_id", "fold_index", "ts", "armed", "lambda_global", "good_streams",
	"operator", "mi_score", "mi_stable", "temperature", "policy_entropy",
	"relational_cluster", "relational_coupling", "relational_state_key",
	"sr_state_id", "sr_uncertainty", "sr_transition_entropy", "sr_td_error_norm", "sr_learned",
	"regime", "zone", "load", "structural_mismatch", "risk_multiplier",
	"type2_trigger", "mi_falling", "control_mode", "explore_pressure", "policy_hint",
	"equity", "daily_pnl", "fills", "rejections",
}

func decisionRow(d domain.DecisionRecord) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return []string{
		d.RunID,
		strconv.Itoa(d.FoldIndex),
		d.Ts.UTC().Format(time.RFC3339),
		strconv.FormatBool(d.Armed),
		f(d.LambdaGlobal),
		strconv.Itoa(d.GoodStreams),
		d.Operator,
		f(d.MIScore),
		strconv.FormatBool(d.MIStable),
		f(d.Temperature),
		f(d.PolicyEntropy),
		d.RelationalCluster,
		f(d.RelationalCoupling),
		d.RelationalStateKey,
		strconv.Itoa(d.SRStateID),
		f(d.SRUncertainty),
		f(d.SRTransitionEntropy),
		f(d.SRTDErrorNorm),
		strconv.FormatBool(d.SRLearned),
		d.Regime,
		d.Zone,
		f(d.Load),
		f(d.StructuralMismatch),
		f(d.RiskMultiplier),
		strconv.FormatBool(d.Type2Trigger),
		strconv.FormatBool(d.MIFalling),
		d.ControlMode,
		f(d.ExplorePressure),
		d.PolicyHint,
		f(d.Equity),
		f(d.DailyPnL),
		strconv.Itoa(d.Fills),
		strconv.Itoa(d.Rejections),
	}
}

// WriteDecisionsCSV writes the decision log with a header row.
func WriteDecisionsCSV(w io.Writer, decisions []domain.DecisionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(decisionHeader); err != nil {
		return err
	}
	for _, d := range decisions {
		if err := cw.Write(decisionRow(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVDecisionSink streams decision records to a CSV writer as the
// simulator emits them. The header is written before the first record.
type CSVDecisionSink struct {
	mu     sync.Mutex
	cw     *csv.Writer
	header bool
}

var _ backtest.DecisionSink = (*CSVDecisionSink)(nil)

// NewCSVDecisionSink creates a sink writing to w.
func NewCSVDecisionSink(w io.Writer) *CSVDecisionSink {
	return &CSVDecisionSink{cw: csv.NewWriter(w)}
}

// Record implements backtest.DecisionSink.
func (s *CSVDecisionSink) Record(d domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.header {
		if err := s.cw.Write(decisionHeader); err != nil {
			return err
		}
		s.header = true
	}
	return s.cw.Write(decisionRow(d))
}

// Flush writes buffered rows and reports any write error.
func (s *CSVDecisionSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cw.Flush()
	return s.cw.Error()
}

// RenderFoldSummaryCSV renders fold results as a CSV string.
func RenderFoldSummaryCSV(folds []domain.FoldResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("fold_index,train_start,train_end,test_start,test_end,")
	sb.WriteString("events_train,events_test,decisions_test,armed_rate_test,")
	sb.WriteString("return_total,max_drawdown,turnover,avg_spread_bps,avg_slippage_bps,fills\n")

	// Rows
	for _, f := range folds {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
			f.Window.FoldIndex,
			formatTime(f.Window.TrainStart),
			formatTime(f.Window.TrainEnd),
			formatTime(f.Window.TestStart),
			formatTime(f.Window.TestEnd),
			f.EventsTrain,
			f.EventsTest,
			f.DecisionsTest,
			f.ArmedRateTest,
			f.Stats.TotalReturn,
			f.Stats.MaxDrawdown,
			f.Stats.Turnover,
			f.Stats.AvgSpreadBps,
			f.Stats.AvgSlippageBps,
			f.Stats.Fills,
		))
	}

	return sb.String()
}

// WriteFoldSummaryCSV writes RenderFoldSummaryCSV output to w.
func WriteFoldSummaryCSV(w io.Writer, folds []domain.FoldResult) error {
	_, err := io.WriteString(w, RenderFoldSummaryCSV(folds))
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
