package domain

// CostScenario holds execution cost parameters applied by the fill model.
type CostScenario struct {
	ScenarioID  string  // "optimistic" | "realistic" | "pessimistic" | "custom"
	SlippageBps float64 // adverse price move per fill, in bps of base price
	FeeBps      float64 // fee in bps of notional
}

// Scenario ID constants
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioCustom      = "custom"
)

// Predefined cost scenarios. Realistic matches the default simulation costs.
var (
	ScenarioConfigOptimistic = CostScenario{
		ScenarioID:  ScenarioOptimistic,
		SlippageBps: 0.2,
		FeeBps:      0.1,
	}

	ScenarioConfigRealistic = CostScenario{
		ScenarioID:  ScenarioRealistic,
		SlippageBps: 0.6,
		FeeBps:      0.2,
	}

	ScenarioConfigPessimistic = CostScenario{
		ScenarioID:  ScenarioPessimistic,
		SlippageBps: 2.0,
		FeeBps:      1.0,
	}
)

// ScenarioByID returns the predefined scenario for id.
func ScenarioByID(id string) (CostScenario, bool) {
	switch id {
	case ScenarioOptimistic:
		return ScenarioConfigOptimistic, true
	case ScenarioRealistic:
		return ScenarioConfigRealistic, true
	case ScenarioPessimistic:
		return ScenarioConfigPessimistic, true
	}
	return CostScenario{}, false
}
