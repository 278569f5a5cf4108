package domain

import "time"

// DecisionRecord captures the pipeline state at one decision step.
// Corresponds to the decisions table and the decision log CSV.
type DecisionRecord struct {
	RunID     string
	FoldIndex int // -1 for a single backtest run
	Ts        time.Time

	// Gate
	Armed        bool
	LambdaGlobal float64
	GoodStreams  int

	// Selector
	Operator      string
	MIScore       float64
	MIStable      bool
	Temperature   float64
	PolicyEntropy float64

	// Relational graph
	RelationalCluster  string
	RelationalCoupling float64
	RelationalStateKey string

	// Successor map
	SRStateID           int
	SRUncertainty       float64
	SRTransitionEntropy float64
	SRTDErrorNorm       float64
	SRLearned           bool

	// Control diagnostics
	Regime             string
	Zone               string
	Load               float64
	StructuralMismatch float64
	RiskMultiplier     float64
	Type2Trigger       bool
	MIFalling          bool
	ControlMode        string
	ExplorePressure    float64
	PolicyHint         string

	// Portfolio
	Equity     float64
	DailyPnL   float64
	Fills      int
	Rejections int
}

// FoldWindow is a walk-forward train/test split.
// TrainEnd == TestStart; intervals are half-open.
type FoldWindow struct {
	FoldIndex  int
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// RunStats summarises an equity curve and its fills.
type RunStats struct {
	TotalReturn    float64
	MaxDrawdown    float64 // non-negative fraction of peak
	Turnover       float64 // sum of fill notionals
	AvgSpreadBps   float64
	AvgSlippageBps float64
	Fills          int
}

// FoldResult is the out-of-sample outcome of one walk-forward fold.
type FoldResult struct {
	RunID         string
	Window        FoldWindow
	EventsTrain   int
	EventsTest    int
	DecisionsTest int
	ArmedRateTest float64
	Stats         RunStats
}

// RunMetadata describes one backtest or walk-forward run.
type RunMetadata struct {
	RunID           string
	Kind            string // "backtest" | "walkforward"
	Fingerprint     string // sha256 of canonical config JSON
	StartedAt       time.Time
	FinishedAt      time.Time
	FoldsTotal      int
	FoldsCompleted  int
	DecisionsLogged int
}

// Run kind constants
const (
	RunKindBacktest    = "backtest"
	RunKindWalkForward = "walkforward"
)
