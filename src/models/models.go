package models

// RunRequest starts one simulation run. Seed is required so every run is
// reproducible; omitted tuning fields fall back to server defaults.
type RunRequest struct {
	ScenarioID           string  `json:"scenario_id"`
	Mechanism            string  `json:"mechanism"`
	Seed                 int64   `json:"seed"`
	DurationMs           int64   `json:"duration_ms"`
	StepMs               int64   `json:"step_ms"`
	NoiseArrivalRate     float64 `json:"noise_arrival_rate,omitempty"`
	InformedActivityProb float64 `json:"informed_activity_prob,omitempty"`
	SubmissionLatencyMs  int64   `json:"submission_latency_ms,omitempty"`
}

type RunResponse struct {
	RunID          string             `json:"run_id"`
	ScenarioID     string             `json:"scenario_id"`
	Mechanism      string             `json:"mechanism"`
	Seed           int64              `json:"seed"`
	SchemaVersion  string             `json:"schema_version"`
	MarkPrice      float64            `json:"mark_price"`
	Metrics        map[string]float64 `json:"metrics"`
	FillCount      int                `json:"fill_count"`
	EventCount     int                `json:"event_count"`
	ViolationCount int                `json:"violation_count"`
}

// CalibrationRequest describes a regime search. Empty grids use the default
// search space.
type CalibrationRequest struct {
	Seeds                   []int64   `json:"seeds,omitempty"`
	DurationMs              int64     `json:"duration_ms,omitempty"`
	StepMs                  int64     `json:"step_ms,omitempty"`
	MMH0Grid                []float64 `json:"mm_h0_grid,omitempty"`
	MMKappaGrid             []float64 `json:"mm_kappa_grid,omitempty"`
	MMMinHalfSpreadGrid     []float64 `json:"mm_min_half_spread_grid,omitempty"`
	InformedActivityGrid    []float64 `json:"informed_activity_grid,omitempty"`
	LatencySubmissionGridMs []int64   `json:"latency_submission_grid_ms,omitempty"`
}

type CalibrationResponse struct {
	CalibrationID         string             `json:"calibration_id"`
	SelectedRegime        RegimeInfo         `json:"selected_regime"`
	BaselineSummary       map[string]float64 `json:"baseline_summary"`
	StableCandidatesFound int                `json:"stable_candidates_found"`
	SensitivityRowCount   int                `json:"sensitivity_row_count"`
}

type RegimeInfo struct {
	H0             float64 `json:"h0"`
	KappaInventory float64 `json:"kappa_inventory"`
	MinHalfSpread  float64 `json:"min_half_spread"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RunsCompleted int64  `json:"runs_completed"`
}

type MetricsResponse struct {
	RunsRequested         int64   `json:"runs_requested"`
	RunsCompleted         int64   `json:"runs_completed"`
	RunsFailed            int64   `json:"runs_failed"`
	CalibrationsCompleted int64   `json:"calibrations_completed"`
	LatencyP50Ms          float64 `json:"latency_p50_ms"`
	LatencyP99Ms          float64 `json:"latency_p99_ms"`
	LatencyP999Ms         float64 `json:"latency_p999_ms"`
	ThroughputRunsPerSec  float64 `json:"throughput_runs_per_sec"`
}
