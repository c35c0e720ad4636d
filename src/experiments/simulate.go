package experiments

import (
	"fmt"
	"math/rand"

	"proteus/src/accounting"
	"proteus/src/agents"
	"proteus/src/core"
	"proteus/src/engine"
	"proteus/src/execution"
	"proteus/src/info"
	"proteus/src/metrics"
)

// SimulationParams is one cell of the calibration or baseline grids: a quoting
// regime evaluated on a single seed under a given informed-flow intensity and
// submission latency.
type SimulationParams struct {
	Seed                 int64
	DurationMs           int64
	StepMs               int64
	Regime               CandidateRegime
	InformedActivityProb float64
	SubmissionLatencyMs  int64
}

// RunMetrics is the per-run outcome the harness scores regimes on.
type RunMetrics struct {
	MMPnL                  float64 `json:"mm_pnl"`
	MMMaxDrawdown          float64 `json:"mm_max_drawdown"`
	MMAdverseSelectionLoss float64 `json:"mm_adverse_selection_loss"`
	MMAbsInventory         float64 `json:"mm_abs_inventory"`
	MarketSpreadMean       float64 `json:"market_spread_mean"`
	Stable                 bool    `json:"stable"`
}

// SimulateCLOBRegime runs one market maker against informed and noise flow on
// a fresh order book and reports the run metrics. All randomness derives from
// the seed, so a repeated call reproduces the run exactly.
func SimulateCLOBRegime(params SimulationParams) (RunMetrics, error) {
	return simulateOne(params, DefaultSurvivalCriteria())
}

func simulateOne(params SimulationParams, criteria SurvivalCriteria) (RunMetrics, error) {
	if params.StepMs <= 0 {
		return RunMetrics{}, fmt.Errorf("step_ms must be > 0, got %d", params.StepMs)
	}
	if params.DurationMs <= 0 {
		return RunMetrics{}, fmt.Errorf("duration_ms must be > 0, got %d", params.DurationMs)
	}

	rng := core.NewRNGManager(params.Seed)

	mechanism := engine.NewCLOB()
	latencyProfile := execution.LatencyProfile{
		SubmissionMs: params.SubmissionLatencyMs,
		AckMs:        1,
		FillMs:       1,
	}
	latency := execution.NewConfigurableLatencyModel(
		map[string]execution.LatencyProfile{"clob": latencyProfile},
		latencyProfile,
		rng.ChildSeed("latency"),
	)

	latent := info.NewBoundedLogOddsLatentProcess(0.5, 0.995, 0.2, info.JumpConfig{})
	latent.Reset(rng.ChildSeed("latent"))

	signalModel := info.NewHeterogeneousSignalModel(
		info.AgentSignalConfig{NoiseStddev: 0.01},
		map[string]info.AgentSignalConfig{
			"mm-1":    {DelayMs: 0, NoiseStddev: 0.01},
			"inf-1":   {DelayMs: 10, NoiseStddev: 0.015},
			"noise-1": {DelayMs: 5, NoiseStddev: 0.02},
		},
	)
	signalModel.Reset(rng.ChildSeed("signals"))

	mmCfg := agents.DefaultMarketMakerConfig()
	mmCfg.H0 = params.Regime.H0
	mmCfg.KappaInventory = params.Regime.KappaInventory
	mmCfg.MinHalfSpread = params.Regime.MinHalfSpread
	mmCfg.BaseSize = 1.0
	mmCfg.MaxInventory = 20.0
	mm := agents.NewMarketMaker("mm-1", mmCfg)

	infCfg := agents.DefaultInformedTraderConfig()
	infCfg.MinSize = 0.5
	infCfg.MaxSize = 2.0
	informed := agents.NewInformedTrader("inf-1", infCfg)

	noise := agents.NewNoiseTrader("noise-1", 1.8, rng.ChildSeed("noise"))

	roster := []agents.Agent{mm, informed, noise}
	decisionRNG := rand.New(rand.NewSource(rng.ChildSeed("decision")))
	recorder := metrics.NewRecorder()

	pendingOrders := map[int64][]core.OrderIntent{}
	pendingFills := map[int64][]core.Fill{}

	bestBid, bestAsk := 0.49, 0.51
	quoteSize := 1.0
	lastTruth := 0.5
	eventSeq := int64(0)

	for ts := int64(0); ts <= params.DurationMs || len(pendingOrders) > 0 || len(pendingFills) > 0; ts += params.StepMs {
		for _, fill := range pendingFills[ts] {
			recorder.RecordFill(fill)
			eventSeq++
			fillEvent, err := core.NewEvent(
				fmt.Sprintf("fill-%d", eventSeq), ts, core.EventFill,
				map[string]any{
					"fill_id":       fill.FillID,
					"buy_agent_id":  fill.BuyAgentID,
					"sell_agent_id": fill.SellAgentID,
					"price":         fill.Price,
					"size":          fill.Size,
				},
			)
			if err != nil {
				return RunMetrics{}, err
			}
			recorder.Record(fillEvent)
			for _, agent := range roster {
				agent.OnEvent(fillEvent)
			}
		}
		delete(pendingFills, ts)

		for _, intent := range pendingOrders[ts] {
			if err := mechanism.Submit(intent); err != nil {
				return RunMetrics{}, fmt.Errorf("submit %s: %w", intent.IntentID, err)
			}
			eventSeq++
			orderEvent, err := core.NewEvent(
				fmt.Sprintf("order-%d", eventSeq), ts, core.EventOrder,
				map[string]any{
					"agent_id": intent.AgentID,
					"side":     string(intent.Side),
					"price":    intent.Price,
					"size":     intent.Size,
				},
			)
			if err != nil {
				return RunMetrics{}, err
			}
			recorder.Record(orderEvent)
		}
		delete(pendingOrders, ts)

		for _, fill := range mechanism.Clear(ts) {
			due := alignToStep(ts+latency.FillDelayMs("clob"), params.StepMs)
			pendingFills[due] = append(pendingFills[due], fill)
		}

		if ts <= params.DurationMs {
			lastTruth = latent.Step(params.StepMs)
			eventSeq++
			newsEvent, err := core.NewEvent(
				fmt.Sprintf("news-%d", eventSeq), ts, core.EventNews,
				map[string]any{"p_t": lastTruth},
			)
			if err != nil {
				return RunMetrics{}, err
			}
			recorder.Record(newsEvent)

			for _, agent := range roster {
				observed := signalModel.Observe(agent.AgentID(), ts, lastTruth)
				private, err := core.NewEvent(
					fmt.Sprintf("news-private-%s-%d", agent.AgentID(), eventSeq), ts, core.EventNews,
					map[string]any{"signal": observed, "p_t": observed},
				)
				if err != nil {
					return RunMetrics{}, err
				}
				agent.OnEvent(private)
			}

			eventSeq++
			quoteEvent, err := core.NewEvent(
				fmt.Sprintf("quote-%d", eventSeq), ts, core.EventQuote,
				map[string]any{
					"bid":      bestBid,
					"ask":      bestAsk,
					"best_bid": bestBid,
					"best_ask": bestAsk,
					"bid_size": quoteSize,
					"ask_size": quoteSize,
				},
			)
			if err != nil {
				return RunMetrics{}, err
			}
			recorder.Record(quoteEvent)
			for _, agent := range roster {
				agent.OnEvent(quoteEvent)
			}

			mmIntents := mm.GenerateIntents(ts)
			topBid, hasTopBid := 0.0, false
			topAsk, hasTopAsk := 0.0, false
			for _, intent := range mmIntents {
				if intent.Side == core.SideBuy && (!hasTopBid || intent.Price > topBid) {
					topBid, hasTopBid = intent.Price, true
				}
				if intent.Side == core.SideSell && (!hasTopAsk || intent.Price < topAsk) {
					topAsk, hasTopAsk = intent.Price, true
				}
			}
			if hasTopBid {
				bestBid = topBid
			}
			if hasTopAsk {
				bestAsk = topAsk
			}
			if len(mmIntents) > 0 {
				quoteSize = mmIntents[0].Size
			}

			intents := append([]core.OrderIntent(nil), mmIntents...)
			if decisionRNG.Float64() < params.InformedActivityProb {
				intents = append(intents, informed.GenerateIntents(ts)...)
			}
			intents = append(intents, noise.GenerateIntents(ts)...)

			submitDelay := latency.SubmissionDelayMs("clob") + latency.AckDelayMs("clob")
			if submitDelay < params.StepMs {
				submitDelay = params.StepMs
			}
			for _, intent := range intents {
				due := alignToStep(ts+submitDelay, params.StepMs)
				pendingOrders[due] = append(pendingOrders[due], intent)
			}
		}
	}

	bundle, err := recorder.BuildBundle("clob-calibration", params.Seed, "clob", lastTruth)
	if err != nil {
		return RunMetrics{}, err
	}

	ledger := accounting.NewEngine()
	snapshot := ledger.ProcessFills(recorder.Fills())
	absInventory := 0.0
	if account, ok := snapshot.Accounts["mm-1"]; ok {
		absInventory = account.Inventory
		if absInventory < 0 {
			absInventory = -absInventory
		}
	}

	result := RunMetrics{
		MMPnL:                  bundle.Metrics["mm_pnl"],
		MMMaxDrawdown:          bundle.Metrics["mm_max_drawdown"],
		MMAdverseSelectionLoss: bundle.Metrics["mm_adverse_selection_loss"],
		MMAbsInventory:         absInventory,
		MarketSpreadMean:       bundle.Metrics["market_spread_mean"],
	}
	result.Stable = result.MMPnL >= criteria.MinMMPnL &&
		result.MMAbsInventory <= criteria.MaxAbsInventory &&
		result.MMMaxDrawdown <= criteria.MaxDrawdown
	return result, nil
}

// alignToStep rounds a due time up to the next simulation step boundary.
func alignToStep(tsMs, stepMs int64) int64 {
	if tsMs <= 0 {
		return 0
	}
	return ((tsMs + stepMs - 1) / stepMs) * stepMs
}
