package experiments

import (
	"proteus/src/core"
	"proteus/src/engine"
)

// CLOBSmokeScenario is the tiny default scenario used by the smoke runner and
// the service's dry-run endpoint.
func CLOBSmokeScenario(seed int64) core.ScenarioConfig {
	return core.ScenarioConfig{
		ScenarioID: "smoke-clob",
		Seed:       seed,
		DurationMs: 1_000,
		Mechanism:  core.MechanismConfig{Name: "clob"},
	}
}

// BuildMechanism creates the mechanism a scenario asks for.
func BuildMechanism(scenario core.ScenarioConfig) (engine.Mechanism, error) {
	return engine.Build(scenario.Mechanism)
}
