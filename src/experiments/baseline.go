package experiments

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"proteus/src/core"
)

const (
	BaselinePackReportName  = "clob_baseline_pack_report.json"
	BaselinePackSummaryName = "clob_baseline_pack_summary.csv"
)

// BaselinePackConfig drives the full baseline experiment: a calibration pass
// to pick the regime, then repeated runs across the informed-activity and
// latency grids with per-cell confidence intervals and effect sizes.
type BaselinePackConfig struct {
	BaseSeed                     int64                   `json:"base_seed"`
	Repetitions                  int                     `json:"repetitions"`
	DurationMs                   int64                   `json:"duration_ms"`
	StepMs                       int64                   `json:"step_ms"`
	InformedActivityGrid         []float64               `json:"informed_activity_grid"`
	LatencySubmissionGridMs      []int64                 `json:"latency_submission_grid_ms"`
	BaselineInformedActivityProb float64                 `json:"baseline_informed_activity_prob"`
	BaselineSubmissionLatencyMs  int64                   `json:"baseline_submission_latency_ms"`
	Calibration                  CalibrationSearchConfig `json:"calibration"`
}

func DefaultBaselinePackConfig() BaselinePackConfig {
	return BaselinePackConfig{
		BaseSeed:                     7,
		Repetitions:                  20,
		DurationMs:                   20_000,
		StepMs:                       100,
		InformedActivityGrid:         []float64{0.03, 0.06, 0.12, 0.2},
		LatencySubmissionGridMs:      []int64{1, 25, 100, 250},
		BaselineInformedActivityProb: 0.06,
		BaselineSubmissionLatencyMs:  1,
		Calibration:                  DefaultCalibrationSearchConfig(),
	}
}

// BaselineCellSummary is one grid cell's aggregate statistics over all
// repetition seeds.
type BaselineCellSummary struct {
	InformedActivityProb      float64 `json:"informed_activity_prob"`
	SubmissionLatencyMs       float64 `json:"submission_latency_ms"`
	NRuns                     float64 `json:"n_runs"`
	MMPnLMean                 float64 `json:"mm_pnl_mean"`
	MMPnLCI95Low              float64 `json:"mm_pnl_ci95_low"`
	MMPnLCI95High             float64 `json:"mm_pnl_ci95_high"`
	MMDrawdownMean            float64 `json:"mm_drawdown_mean"`
	MMASLossMean              float64 `json:"mm_as_loss_mean"`
	MarketSpreadMean          float64 `json:"market_spread_mean"`
	MarketSpreadCI95Low       float64 `json:"market_spread_ci95_low"`
	MarketSpreadCI95High      float64 `json:"market_spread_ci95_high"`
	StableRate                float64 `json:"stable_rate"`
	EffectSizeMMPnLVsBaseline float64 `json:"effect_size_mm_pnl_vs_baseline_d"`
}

// BaselinePackResult points at the written artifacts.
type BaselinePackResult struct {
	ReportPath            string `json:"report_path"`
	SummaryCSVPath        string `json:"summary_csv_path"`
	CalibrationReportPath string `json:"calibration_report_path"`
}

type baselinePackPayload struct {
	Config                     baselineConfigPayload `json:"config"`
	SelectedRegime             CandidateRegime       `json:"selected_regime"`
	CalibrationBaselineSummary map[string]float64    `json:"calibration_baseline_summary"`
	Rows                       []BaselineCellSummary `json:"rows"`
}

type baselineConfigPayload struct {
	BaselinePackConfig
	EffectiveRepetitionSeeds []int64 `json:"effective_repetition_seeds"`
}

// RunCLOBBaselinePack derives one seed per repetition from the base seed,
// calibrates the regime on those seeds, sweeps the grid, and writes the
// report JSON plus a CSV summary with one row per cell.
func RunCLOBBaselinePack(config BaselinePackConfig, outDir string) (BaselinePackResult, error) {
	if err := validateBaselineConfig(config); err != nil {
		return BaselinePackResult{}, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return BaselinePackResult{}, fmt.Errorf("create output dir: %w", err)
	}

	seeds := make([]int64, config.Repetitions)
	for i := range seeds {
		seeds[i] = core.DeriveRepetitionSeed(config.BaseSeed, i)
	}

	calibrationCfg := config.Calibration
	if len(calibrationCfg.MMH0Grid) == 0 {
		calibrationCfg = DefaultCalibrationSearchConfig()
	}
	calibrationCfg.Seeds = seeds

	calibration, err := RunCLOBCalibration(calibrationCfg, outDir)
	if err != nil {
		return BaselinePackResult{}, err
	}
	regime := calibration.SelectedRegime

	baselineRuns, err := runPackCell(config, seeds, regime, config.BaselineInformedActivityProb, config.BaselineSubmissionLatencyMs)
	if err != nil {
		return BaselinePackResult{}, err
	}
	baselinePnL := collect(baselineRuns, func(r RunMetrics) float64 { return r.MMPnL })

	var rows []BaselineCellSummary
	for _, informedProb := range config.InformedActivityGrid {
		for _, latencyMs := range config.LatencySubmissionGridMs {
			runs, err := runPackCell(config, seeds, regime, informedProb, latencyMs)
			if err != nil {
				return BaselinePackResult{}, err
			}
			rows = append(rows, summarizeCell(runs, baselinePnL, informedProb, latencyMs))
		}
	}

	configPayload := baselineConfigPayload{BaselinePackConfig: config}
	configPayload.Calibration = calibrationCfg
	configPayload.EffectiveRepetitionSeeds = seeds

	payload := baselinePackPayload{
		Config:                     configPayload,
		SelectedRegime:             regime,
		CalibrationBaselineSummary: calibration.BaselineSummary,
		Rows:                       rows,
	}

	reportPath := filepath.Join(outDir, BaselinePackReportName)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return BaselinePackResult{}, fmt.Errorf("marshal baseline report: %w", err)
	}
	if err := os.WriteFile(reportPath, append(data, '\n'), 0o644); err != nil {
		return BaselinePackResult{}, fmt.Errorf("write baseline report: %w", err)
	}

	summaryPath := filepath.Join(outDir, BaselinePackSummaryName)
	if err := writeBaselineSummaryCSV(summaryPath, rows); err != nil {
		return BaselinePackResult{}, err
	}

	return BaselinePackResult{
		ReportPath:            reportPath,
		SummaryCSVPath:        summaryPath,
		CalibrationReportPath: calibration.ReportPath,
	}, nil
}

func validateBaselineConfig(config BaselinePackConfig) error {
	if config.Repetitions <= 0 {
		return fmt.Errorf("repetitions must be > 0")
	}
	if config.DurationMs <= 0 {
		return fmt.Errorf("duration_ms must be > 0")
	}
	if config.StepMs <= 0 {
		return fmt.Errorf("step_ms must be > 0")
	}
	if len(config.InformedActivityGrid) == 0 {
		return fmt.Errorf("informed_activity_grid must be non-empty")
	}
	if len(config.LatencySubmissionGridMs) == 0 {
		return fmt.Errorf("latency_submission_grid_ms must be non-empty")
	}
	return nil
}

func runPackCell(config BaselinePackConfig, seeds []int64, regime CandidateRegime, informedProb float64, latencyMs int64) ([]RunMetrics, error) {
	runs := make([]RunMetrics, 0, len(seeds))
	for _, seed := range seeds {
		run, err := simulateOne(SimulationParams{
			Seed:                 seed,
			DurationMs:           config.DurationMs,
			StepMs:               config.StepMs,
			Regime:               regime,
			InformedActivityProb: informedProb,
			SubmissionLatencyMs:  latencyMs,
		}, config.Calibration.Criteria)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func summarizeCell(runs []RunMetrics, baselinePnL []float64, informedProb float64, latencyMs int64) BaselineCellSummary {
	pnl := collect(runs, func(r RunMetrics) float64 { return r.MMPnL })
	spreads := collect(runs, func(r RunMetrics) float64 { return r.MarketSpreadMean })

	pnlMean, pnlLow, pnlHigh := meanCI95(pnl)
	spreadMean, spreadLow, spreadHigh := meanCI95(spreads)

	return BaselineCellSummary{
		InformedActivityProb:      informedProb,
		SubmissionLatencyMs:       float64(latencyMs),
		NRuns:                     float64(len(runs)),
		MMPnLMean:                 pnlMean,
		MMPnLCI95Low:              pnlLow,
		MMPnLCI95High:             pnlHigh,
		MMDrawdownMean:            meanOf(runs, func(r RunMetrics) float64 { return r.MMMaxDrawdown }),
		MMASLossMean:              meanOf(runs, func(r RunMetrics) float64 { return r.MMAdverseSelectionLoss }),
		MarketSpreadMean:          spreadMean,
		MarketSpreadCI95Low:       spreadLow,
		MarketSpreadCI95High:      spreadHigh,
		StableRate:                meanOf(runs, func(r RunMetrics) float64 { return boolToFloat(r.Stable) }),
		EffectSizeMMPnLVsBaseline: cohensD(pnl, baselinePnL),
	}
}

func collect(runs []RunMetrics, value func(RunMetrics) float64) []float64 {
	values := make([]float64, len(runs))
	for i, run := range runs {
		values[i] = value(run)
	}
	return values
}

// meanCI95 returns the sample mean with a normal-approximation 95% interval.
// With fewer than two samples the interval collapses to the mean.
func meanCI95(values []float64) (mean, low, high float64) {
	mean = meanFloat(values)
	if len(values) < 2 {
		return mean, mean, mean
	}
	halfWidth := 1.96 * stdevFloat(values) / math.Sqrt(float64(len(values)))
	return mean, mean - halfWidth, mean + halfWidth
}

// cohensD is the pooled-variance standardized difference between a sample and
// the baseline cell.
func cohensD(sample, baseline []float64) float64 {
	if len(sample) < 2 || len(baseline) < 2 {
		return 0.0
	}
	degreesOfFreedom := len(sample) + len(baseline) - 2
	sampleSD := stdevFloat(sample)
	baselineSD := stdevFloat(baseline)
	pooledVariance := (float64(len(sample)-1)*sampleSD*sampleSD +
		float64(len(baseline)-1)*baselineSD*baselineSD) / float64(degreesOfFreedom)
	if pooledVariance <= 0.0 {
		return 0.0
	}
	return (meanFloat(sample) - meanFloat(baseline)) / math.Sqrt(pooledVariance)
}

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

func stdevFloat(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	mean := meanFloat(values)
	sum := 0.0
	for _, value := range values {
		diff := value - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

var baselineSummaryColumns = []string{
	"informed_activity_prob",
	"submission_latency_ms",
	"n_runs",
	"mm_pnl_mean",
	"mm_pnl_ci95_low",
	"mm_pnl_ci95_high",
	"mm_drawdown_mean",
	"mm_as_loss_mean",
	"market_spread_mean",
	"market_spread_ci95_low",
	"market_spread_ci95_high",
	"stable_rate",
	"effect_size_mm_pnl_vs_baseline_d",
}

func writeBaselineSummaryCSV(path string, rows []BaselineCellSummary) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(baselineSummaryColumns); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, row := range rows {
		record := []float64{
			row.InformedActivityProb,
			row.SubmissionLatencyMs,
			row.NRuns,
			row.MMPnLMean,
			row.MMPnLCI95Low,
			row.MMPnLCI95High,
			row.MMDrawdownMean,
			row.MMASLossMean,
			row.MarketSpreadMean,
			row.MarketSpreadCI95Low,
			row.MarketSpreadCI95High,
			row.StableRate,
			row.EffectSizeMMPnLVsBaseline,
		}
		fields := make([]string, len(record))
		for i, value := range record {
			fields[i] = strconv.FormatFloat(value, 'g', -1, 64)
		}
		if err := writer.Write(fields); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush summary csv: %w", err)
	}
	return file.Close()
}
