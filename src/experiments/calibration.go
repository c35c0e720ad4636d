// Package experiments holds the scenario presets, the calibration harness,
// and the baseline experiment pack built on top of the simulator.
package experiments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CalibrationReportName is the artifact the calibration harness writes.
const CalibrationReportName = "clob_calibration_report.json"

// SurvivalCriteria defines when a run counts as stable: the maker ends
// solvent, within its inventory band, and without a blow-up drawdown.
type SurvivalCriteria struct {
	MinMMPnL        float64 `json:"min_mm_pnl"`
	MaxAbsInventory float64 `json:"max_abs_inventory"`
	MaxDrawdown     float64 `json:"max_drawdown"`
}

func DefaultSurvivalCriteria() SurvivalCriteria {
	return SurvivalCriteria{
		MinMMPnL:        0.0,
		MaxAbsInventory: 10.0,
		MaxDrawdown:     5.0,
	}
}

// CandidateRegime is one point of the market-maker parameter grid.
type CandidateRegime struct {
	H0             float64 `json:"h0"`
	KappaInventory float64 `json:"kappa_inventory"`
	MinHalfSpread  float64 `json:"min_half_spread"`
}

// CalibrationSearchConfig spans the regime grid and the sensitivity
// diagnostics evaluated around the selected regime.
type CalibrationSearchConfig struct {
	Seeds      []int64 `json:"seeds"`
	DurationMs int64   `json:"duration_ms"`
	StepMs     int64   `json:"step_ms"`

	MMH0Grid            []float64 `json:"mm_h0_grid"`
	MMKappaGrid         []float64 `json:"mm_kappa_grid"`
	MMMinHalfSpreadGrid []float64 `json:"mm_min_half_spread_grid"`

	BaselineInformedActivityProb float64 `json:"baseline_informed_activity_prob"`
	BaselineSubmissionLatencyMs  int64   `json:"baseline_submission_latency_ms"`

	InformedActivityGrid    []float64 `json:"informed_activity_grid"`
	LatencySubmissionGridMs []int64   `json:"latency_submission_grid_ms"`

	Criteria SurvivalCriteria `json:"criteria"`
}

func DefaultCalibrationSearchConfig() CalibrationSearchConfig {
	return CalibrationSearchConfig{
		Seeds:                        []int64{7, 11, 17},
		DurationMs:                   20_000,
		StepMs:                       100,
		MMH0Grid:                     []float64{0.008, 0.012, 0.016, 0.02},
		MMKappaGrid:                  []float64{0.004, 0.008, 0.012},
		MMMinHalfSpreadGrid:          []float64{0.002, 0.003, 0.004},
		BaselineInformedActivityProb: 0.06,
		BaselineSubmissionLatencyMs:  1,
		InformedActivityGrid:         []float64{0.03, 0.06, 0.12, 0.2},
		LatencySubmissionGridMs:      []int64{1, 3, 7, 15},
		Criteria:                     DefaultSurvivalCriteria(),
	}
}

// SensitivityRow reports one (informed activity, latency) cell of the
// diagnostics grid, averaged over the configured seeds.
type SensitivityRow struct {
	InformedActivityProb float64 `json:"informed_activity_prob"`
	SubmissionLatencyMs  float64 `json:"submission_latency_ms"`
	MMPnLMean            float64 `json:"mm_pnl_mean"`
	MMDrawdownMean       float64 `json:"mm_drawdown_mean"`
	MMASLossMean         float64 `json:"mm_as_loss_mean"`
	StableRate           float64 `json:"stable_rate"`
}

// CalibrationReport is the selection outcome plus the sensitivity grid.
type CalibrationReport struct {
	SelectedRegime        CandidateRegime    `json:"selected_regime"`
	BaselineSummary       map[string]float64 `json:"baseline_summary"`
	BaselineRationale     string             `json:"baseline_rationale"`
	SensitivityRows       []SensitivityRow   `json:"sensitivity_rows"`
	StableCandidatesFound int                `json:"stable_candidates_found"`
	ReportPath            string             `json:"report_path"`
}

// RunCLOBCalibration grid-searches market-maker regimes under baseline flow,
// selects the best risk-adjusted survivor, and evaluates it across the
// sensitivity grid. An empty outDir skips writing the report artifact.
func RunCLOBCalibration(config CalibrationSearchConfig, outDir string) (CalibrationReport, error) {
	if len(config.Seeds) == 0 {
		return CalibrationReport{}, fmt.Errorf("seeds must be non-empty")
	}
	if len(config.MMH0Grid) == 0 || len(config.MMKappaGrid) == 0 || len(config.MMMinHalfSpreadGrid) == 0 {
		return CalibrationReport{}, fmt.Errorf("regime grids must be non-empty")
	}

	type scoredRegime struct {
		score  float64
		regime CandidateRegime
		runs   []RunMetrics
		stable bool
	}

	var scored []scoredRegime
	stableCount := 0

	for _, h0 := range config.MMH0Grid {
		for _, kappa := range config.MMKappaGrid {
			for _, minHalfSpread := range config.MMMinHalfSpreadGrid {
				regime := CandidateRegime{
					H0:             h0,
					KappaInventory: kappa,
					MinHalfSpread:  minHalfSpread,
				}
				runs, err := runSeeds(config, regime, config.BaselineInformedActivityProb, config.BaselineSubmissionLatencyMs)
				if err != nil {
					return CalibrationReport{}, err
				}
				stable := allStable(runs)
				if stable {
					stableCount++
				}

				// Risk-adjusted baseline score used to select one candidate.
				score := meanOf(runs, func(r RunMetrics) float64 { return r.MMPnL }) -
					meanOf(runs, func(r RunMetrics) float64 { return r.MMMaxDrawdown }) -
					0.5*meanOf(runs, func(r RunMetrics) float64 { return absFloat(r.MMAdverseSelectionLoss) })
				scored = append(scored, scoredRegime{score: score, regime: regime, runs: runs, stable: stable})
			}
		}
	}

	pool := scored
	if stableCount > 0 {
		pool = nil
		for _, candidate := range scored {
			if candidate.stable {
				pool = append(pool, candidate)
			}
		}
	}
	best := pool[0]
	for _, candidate := range pool[1:] {
		if candidate.score > best.score {
			best = candidate
		}
	}

	baselineSummary := map[string]float64{
		"mm_pnl_mean":           meanOf(best.runs, func(r RunMetrics) float64 { return r.MMPnL }),
		"mm_drawdown_mean":      meanOf(best.runs, func(r RunMetrics) float64 { return r.MMMaxDrawdown }),
		"mm_abs_inventory_mean": meanOf(best.runs, func(r RunMetrics) float64 { return r.MMAbsInventory }),
		"market_spread_mean":    meanOf(best.runs, func(r RunMetrics) float64 { return r.MarketSpreadMean }),
		"mm_as_loss_mean":       meanOf(best.runs, func(r RunMetrics) float64 { return r.MMAdverseSelectionLoss }),
	}

	var sensitivity []SensitivityRow
	for _, informedProb := range config.InformedActivityGrid {
		for _, latencyMs := range config.LatencySubmissionGridMs {
			runs, err := runSeeds(config, best.regime, informedProb, latencyMs)
			if err != nil {
				return CalibrationReport{}, err
			}
			sensitivity = append(sensitivity, SensitivityRow{
				InformedActivityProb: informedProb,
				SubmissionLatencyMs:  float64(latencyMs),
				MMPnLMean:            meanOf(runs, func(r RunMetrics) float64 { return r.MMPnL }),
				MMDrawdownMean:       meanOf(runs, func(r RunMetrics) float64 { return r.MMMaxDrawdown }),
				MMASLossMean:         meanOf(runs, func(r RunMetrics) float64 { return r.MMAdverseSelectionLoss }),
				StableRate:           meanOf(runs, func(r RunMetrics) float64 { return boolToFloat(r.Stable) }),
			})
		}
	}

	report := CalibrationReport{
		SelectedRegime:  best.regime,
		BaselineSummary: baselineSummary,
		BaselineRationale: "Selected regime maximizes baseline risk-adjusted MM performance " +
			"(pnl - drawdown - 0.5*|adverse_selection_loss|) under low informed activity.",
		SensitivityRows:       sensitivity,
		StableCandidatesFound: stableCount,
	}

	if outDir == "" {
		return report, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return CalibrationReport{}, fmt.Errorf("create output dir: %w", err)
	}
	report.ReportPath = filepath.Join(outDir, CalibrationReportName)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return CalibrationReport{}, fmt.Errorf("marshal calibration report: %w", err)
	}
	if err := os.WriteFile(report.ReportPath, append(data, '\n'), 0o644); err != nil {
		return CalibrationReport{}, fmt.Errorf("write calibration report: %w", err)
	}
	return report, nil
}

func runSeeds(config CalibrationSearchConfig, regime CandidateRegime, informedProb float64, latencyMs int64) ([]RunMetrics, error) {
	runs := make([]RunMetrics, 0, len(config.Seeds))
	for _, seed := range config.Seeds {
		run, err := simulateOne(SimulationParams{
			Seed:                 seed,
			DurationMs:           config.DurationMs,
			StepMs:               config.StepMs,
			Regime:               regime,
			InformedActivityProb: informedProb,
			SubmissionLatencyMs:  latencyMs,
		}, config.Criteria)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func allStable(runs []RunMetrics) bool {
	for _, run := range runs {
		if !run.Stable {
			return false
		}
	}
	return true
}

func meanOf(runs []RunMetrics, value func(RunMetrics) float64) float64 {
	if len(runs) == 0 {
		return 0.0
	}
	total := 0.0
	for _, run := range runs {
		total += value(run)
	}
	return total / float64(len(runs))
}

func absFloat(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}

func boolToFloat(value bool) float64 {
	if value {
		return 1.0
	}
	return 0.0
}
