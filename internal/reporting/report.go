package reporting

import (
	"time"

	"trident-trader/internal/domain"
	"trident-trader/internal/metrics"
)

// Report is the rendered summary of one run.
type Report struct {
	GeneratedAt   time.Time
	Metadata      domain.RunMetadata
	DataQuality   DataQualitySection
	Aggregate     *metrics.FoldAggregate // nil when no fold completed
	Folds         []domain.FoldResult
	Gate          GateSummary
	OperatorUsage []OperatorUsageRow
	Clusters      []ClusterRow
}

// GateSummary describes how often the lambda gate armed.
type GateSummary struct {
	Decisions    int
	Armed        int
	ArmedRate    float64
	LambdaMean   float64
	LambdaMin    float64
	LambdaMax    float64
	Fills        int
	Rejections   int
	MIStableRate float64
}

// OperatorUsageRow counts decisions per selected operator.
type OperatorUsageRow struct {
	Operator        string
	Decisions       int
	Share           float64
	MeanMIScore     float64
	MeanTemperature float64
}

// ClusterRow counts decisions per relational cluster.
type ClusterRow struct {
	Cluster      string
	Decisions    int
	MeanCoupling float64
}

// DataQualitySection contains input sufficiency results.
type DataQualitySection struct {
	Checks          []QualityCheck
	AllChecksPassed bool
	IntegrityErrors []string
}

// QualityCheck is one input sufficiency criterion.
type QualityCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}
