package core

// MechanismConfig selects a mechanism by name with mechanism-specific settings.
type MechanismConfig struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ScenarioConfig describes one simulation run.
type ScenarioConfig struct {
	ScenarioID string          `json:"scenario_id"`
	Seed       int64           `json:"seed"`
	DurationMs int64           `json:"duration_ms"`
	Mechanism  MechanismConfig `json:"mechanism"`
	Params     map[string]any  `json:"params,omitempty"`
}

// ExperimentConfig is a batch execution definition with one or more scenarios.
type ExperimentConfig struct {
	ExperimentID string           `json:"experiment_id"`
	Scenarios    []ScenarioConfig `json:"scenarios"`
	Repetitions  int              `json:"repetitions"`
}
