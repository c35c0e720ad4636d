package handlers

import (
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"proteus/src/agents"
	"proteus/src/core"
	"proteus/src/experiments"
	"proteus/src/models"
)

const (
	defaultRunDurationMs = int64(10_000)
	defaultRunStepMs     = int64(100)
	defaultNoiseRate     = 1.8
)

type SimulationHandler struct {
	StartTime             time.Time
	RunsRequested         int64
	RunsCompleted         int64
	RunsFailed            int64
	CalibrationsCompleted int64

	runs   map[string]models.RunResponse
	runsMu sync.RWMutex

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int

	maxDurationMs int64
}

func NewSimulationHandler() *SimulationHandler {
	maxLatencies := 10000
	if envMax := os.Getenv("METRICS_MAX_LATENCIES"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxLatencies = parsed
		}
	}

	maxDurationMs := int64(600_000)
	if envMax := os.Getenv("MAX_RUN_DURATION_MS"); envMax != "" {
		if parsed, err := strconv.ParseInt(envMax, 10, 64); err == nil && parsed > 0 {
			maxDurationMs = parsed
		}
	}

	return &SimulationHandler{
		StartTime:     time.Now(),
		runs:          make(map[string]models.RunResponse),
		latencies:     make([]time.Duration, 0, maxLatencies),
		maxLatencies:  maxLatencies,
		maxDurationMs: maxDurationMs,
	}
}

func (h *SimulationHandler) StartRun(c *fiber.Ctx) error {
	var req models.RunRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	if req.Mechanism == "" {
		req.Mechanism = "clob"
	}
	if req.DurationMs == 0 {
		req.DurationMs = defaultRunDurationMs
	}
	if req.StepMs == 0 {
		req.StepMs = defaultRunStepMs
	}
	if req.NoiseArrivalRate == 0 {
		req.NoiseArrivalRate = defaultNoiseRate
	}

	if err := validateRunRequest(&req, h.maxDurationMs); err != nil {
		log.Warn().
			Err(err).
			Str("scenario_id", req.ScenarioID).
			Str("mechanism", req.Mechanism).
			Str("ip", c.IP()).
			Msg("Invalid run request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: err.Error(),
		})
	}

	runID := uuid.New().String()
	if req.ScenarioID == "" {
		req.ScenarioID = "run-" + runID
	}

	atomic.AddInt64(&h.RunsRequested, 1)

	log.Info().
		Str("run_id", runID).
		Str("scenario_id", req.ScenarioID).
		Str("mechanism", req.Mechanism).
		Int64("seed", req.Seed).
		Int64("duration_ms", req.DurationMs).
		Str("ip", c.IP()).
		Msg("Run started")

	params := map[string]any{"step_ms": req.StepMs}
	if req.InformedActivityProb > 0 {
		params["informed_activity_prob"] = req.InformedActivityProb
	}
	if req.SubmissionLatencyMs > 0 {
		params["submission_latency_ms"] = req.SubmissionLatencyMs
	}

	scenario := core.ScenarioConfig{
		ScenarioID: req.ScenarioID,
		Seed:       req.Seed,
		DurationMs: req.DurationMs,
		Mechanism:  core.MechanismConfig{Name: req.Mechanism},
		Params:     params,
	}

	rng := core.NewRNGManager(req.Seed)
	roster := []agents.Agent{
		agents.NewMarketMaker("mm-1", agents.DefaultMarketMakerConfig()),
		agents.NewInformedTrader("inf-1", agents.DefaultInformedTraderConfig()),
		agents.NewNoiseTrader("noise-1", req.NoiseArrivalRate, rng.ChildSeed("noise")),
	}

	startTime := time.Now()
	bundle, err := experiments.RunScenario(scenario, roster)
	h.recordLatency(time.Since(startTime))

	if err != nil {
		atomic.AddInt64(&h.RunsFailed, 1)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Str("scenario_id", req.ScenarioID).
			Msg("Run failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	response := models.RunResponse{
		RunID:          runID,
		ScenarioID:     bundle.ScenarioID,
		Mechanism:      bundle.Mechanism,
		Seed:           bundle.Seed,
		SchemaVersion:  bundle.SchemaVersion,
		MarkPrice:      bundle.MarkPrice,
		Metrics:        bundle.Metrics,
		FillCount:      len(bundle.Fills),
		EventCount:     len(bundle.EventLog),
		ViolationCount: len(bundle.Violations),
	}

	h.runsMu.Lock()
	h.runs[runID] = response
	h.runsMu.Unlock()

	atomic.AddInt64(&h.RunsCompleted, 1)

	log.Info().
		Str("run_id", runID).
		Int("fill_count", response.FillCount).
		Int("event_count", response.EventCount).
		Int("violation_count", response.ViolationCount).
		Msg("Run completed")

	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *SimulationHandler) GetRun(c *fiber.Ctx) error {
	runID := c.Params("id")

	h.runsMu.RLock()
	response, exists := h.runs[runID]
	h.runsMu.RUnlock()

	if !exists {
		log.Warn().
			Str("run_id", runID).
			Str("ip", c.IP()).
			Msg("Get run: run not found")
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Run not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *SimulationHandler) StartCalibration(c *fiber.Ctx) error {
	var req models.CalibrationRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid request: malformed JSON",
		})
	}

	config := experiments.DefaultCalibrationSearchConfig()
	if len(req.Seeds) > 0 {
		config.Seeds = req.Seeds
	}
	if req.DurationMs > 0 {
		config.DurationMs = req.DurationMs
	}
	if req.StepMs > 0 {
		config.StepMs = req.StepMs
	}
	if len(req.MMH0Grid) > 0 {
		config.MMH0Grid = req.MMH0Grid
	}
	if len(req.MMKappaGrid) > 0 {
		config.MMKappaGrid = req.MMKappaGrid
	}
	if len(req.MMMinHalfSpreadGrid) > 0 {
		config.MMMinHalfSpreadGrid = req.MMMinHalfSpreadGrid
	}
	if len(req.InformedActivityGrid) > 0 {
		config.InformedActivityGrid = req.InformedActivityGrid
	}
	if len(req.LatencySubmissionGridMs) > 0 {
		config.LatencySubmissionGridMs = req.LatencySubmissionGridMs
	}

	if config.DurationMs > h.maxDurationMs {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid calibration: duration_ms exceeds server limit",
		})
	}

	calibrationID := uuid.New().String()

	log.Info().
		Str("calibration_id", calibrationID).
		Int("seeds", len(config.Seeds)).
		Int64("duration_ms", config.DurationMs).
		Str("ip", c.IP()).
		Msg("Calibration started")

	startTime := time.Now()
	report, err := experiments.RunCLOBCalibration(config, "")
	h.recordLatency(time.Since(startTime))

	if err != nil {
		log.Error().
			Err(err).
			Str("calibration_id", calibrationID).
			Msg("Calibration failed")
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	atomic.AddInt64(&h.CalibrationsCompleted, 1)

	log.Info().
		Str("calibration_id", calibrationID).
		Float64("selected_h0", report.SelectedRegime.H0).
		Int("stable_candidates", report.StableCandidatesFound).
		Msg("Calibration completed")

	return c.Status(fiber.StatusOK).JSON(models.CalibrationResponse{
		CalibrationID: calibrationID,
		SelectedRegime: models.RegimeInfo{
			H0:             report.SelectedRegime.H0,
			KappaInventory: report.SelectedRegime.KappaInventory,
			MinHalfSpread:  report.SelectedRegime.MinHalfSpread,
		},
		BaselineSummary:       report.BaselineSummary,
		StableCandidatesFound: report.StableCandidatesFound,
		SensitivityRowCount:   len(report.SensitivityRows),
	})
}

func (h *SimulationHandler) HealthCheck(c *fiber.Ctx) error {
	uptime := time.Since(h.StartTime).Seconds()

	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(uptime),
		RunsCompleted: atomic.LoadInt64(&h.RunsCompleted),
	})
}

func (h *SimulationHandler) Metrics(c *fiber.Ctx) error {
	p50, p99, p999 := h.calculateLatencyPercentiles()

	return c.Status(fiber.StatusOK).JSON(models.MetricsResponse{
		RunsRequested:         atomic.LoadInt64(&h.RunsRequested),
		RunsCompleted:         atomic.LoadInt64(&h.RunsCompleted),
		RunsFailed:            atomic.LoadInt64(&h.RunsFailed),
		CalibrationsCompleted: atomic.LoadInt64(&h.CalibrationsCompleted),
		LatencyP50Ms:          p50,
		LatencyP99Ms:          p99,
		LatencyP999Ms:         p999,
		ThroughputRunsPerSec:  h.calculateThroughput(),
	})
}

func (h *SimulationHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		removeCount := len(h.latencies) - h.maxLatencies
		h.latencies = h.latencies[removeCount:]
	}
}

func (h *SimulationHandler) calculateLatencyPercentiles() (p50, p99, p999 float64) {
	h.latenciesMu.RLock()
	defer h.latenciesMu.RUnlock()

	if len(h.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(h.latencies))
	copy(sorted, h.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := func(q float64) int {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}

	p50 = float64(sorted[index(0.50)].Nanoseconds()) / 1e6
	p99 = float64(sorted[index(0.99)].Nanoseconds()) / 1e6
	p999 = float64(sorted[index(0.999)].Nanoseconds()) / 1e6
	return p50, p99, p999
}

func (h *SimulationHandler) calculateThroughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&h.RunsCompleted)) / uptime
}

func validateRunRequest(req *models.RunRequest, maxDurationMs int64) error {
	switch req.Mechanism {
	case "clob", "fba", "rfq":
	default:
		return &ValidationError{Message: "Invalid run: mechanism must be clob, fba, or rfq"}
	}

	if req.DurationMs <= 0 {
		return &ValidationError{Message: "Invalid run: duration_ms must be positive"}
	}

	// edge case: cap run length so one request cannot pin the server
	if req.DurationMs > maxDurationMs {
		return &ValidationError{Message: "Invalid run: duration_ms exceeds server limit"}
	}

	if req.StepMs <= 0 {
		return &ValidationError{Message: "Invalid run: step_ms must be positive"}
	}

	if req.NoiseArrivalRate < 0 {
		return &ValidationError{Message: "Invalid run: noise_arrival_rate must be non-negative"}
	}

	if req.InformedActivityProb < 0 || req.InformedActivityProb > 1 {
		return &ValidationError{Message: "Invalid run: informed_activity_prob must be in [0, 1]"}
	}

	if req.SubmissionLatencyMs < 0 {
		return &ValidationError{Message: "Invalid run: submission_latency_ms must be non-negative"}
	}

	return nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
