package experiments

import (
	"fmt"
	"math/rand"
	"strings"

	"proteus/src/agents"
	"proteus/src/core"
	"proteus/src/engine"
	"proteus/src/info"
	"proteus/src/metrics"
)

// Event priorities inside a timestamp: fills land before order admissions,
// and news is processed last so agents react on the next step.
const (
	priorityFill  = 0
	priorityOrder = 1
	priorityNews  = 2
)

const defaultStepMs = int64(100)

// RunScenario executes one scenario end to end on the event scheduler and
// returns the run bundle. The roster observes public news, quotes, and fills;
// their intents are admitted one step after generation, or after the
// scenario's submission latency when that is longer.
func RunScenario(scenario core.ScenarioConfig, roster []agents.Agent) (metrics.Bundle, error) {
	mechanism, err := BuildMechanism(scenario)
	if err != nil {
		return metrics.Bundle{}, err
	}

	stepMs := defaultStepMs
	if raw, ok := scenario.Params["step_ms"]; ok {
		if v, ok := paramInt64(raw); ok {
			stepMs = v
		}
	}
	if stepMs <= 0 {
		return metrics.Bundle{}, fmt.Errorf("step_ms must be > 0, got %d", stepMs)
	}

	submitDelayMs := stepMs
	if raw, ok := scenario.Params["submission_latency_ms"]; ok {
		if v, ok := paramInt64(raw); ok && v > stepMs {
			submitDelayMs = v
		}
	}

	informedProb := 1.0
	if raw, ok := scenario.Params["informed_activity_prob"]; ok {
		if v, ok := paramFloat64(raw); ok {
			if v < 0 || v > 1 {
				return metrics.Bundle{}, fmt.Errorf("informed_activity_prob must be in [0, 1], got %v", v)
			}
			informedProb = v
		}
	}

	rng := core.NewRNGManager(scenario.Seed)
	decisionRNG := rand.New(rand.NewSource(rng.ChildSeed("decision")))
	latent := info.NewBoundedLogOddsLatentProcess(0.5, 0.995, 0.2, info.JumpConfig{})
	latent.Reset(rng.ChildSeed("latent"))
	signalModel := info.NewHeterogeneousSignalModel(info.AgentSignalConfig{NoiseStddev: 0.01}, nil)
	signalModel.Reset(rng.ChildSeed("signals"))

	scheduler := core.NewEventScheduler()
	recorder := metrics.NewRecorder()

	eventSeq := int64(0)
	pendingIntents := map[string]core.OrderIntent{}
	pendingFills := map[string]core.Fill{}
	lastTruth := 0.5

	for ts := int64(0); ts <= scenario.DurationMs; ts += stepMs {
		eventSeq++
		news, err := core.NewEvent(fmt.Sprintf("news-%d", eventSeq), ts, core.EventNews, nil)
		if err != nil {
			return metrics.Bundle{}, err
		}
		if _, err := scheduler.Schedule(news, priorityNews); err != nil {
			return metrics.Bundle{}, err
		}
	}

	for scheduler.HasPending() {
		event, ok := scheduler.PopNext()
		if !ok {
			break
		}
		ts := event.TsMs

		switch event.Type {
		case core.EventFill:
			fill, ok := pendingFills[event.EventID]
			if !ok {
				continue
			}
			delete(pendingFills, event.EventID)
			recorder.RecordFill(fill)

			tape := event.Payload
			if tape == nil {
				tape = map[string]any{}
			}
			tape["fill_id"] = fill.FillID
			tape["buy_agent_id"] = fill.BuyAgentID
			tape["sell_agent_id"] = fill.SellAgentID
			tape["price"] = fill.Price
			tape["size"] = fill.Size
			event.Payload = tape

			recorder.Record(event)
			for _, agent := range roster {
				agent.OnEvent(event)
			}

		case core.EventOrder:
			intent, ok := pendingIntents[event.EventID]
			if !ok {
				continue
			}
			delete(pendingIntents, event.EventID)
			if err := mechanism.Submit(intent); err != nil {
				return metrics.Bundle{}, fmt.Errorf("submit %s: %w", intent.IntentID, err)
			}
			recorder.Record(event)

			for _, fill := range mechanism.Clear(ts) {
				eventSeq++
				fillEvent, err := core.NewEvent(fmt.Sprintf("fill-%d", eventSeq), ts+stepMs, core.EventFill, nil)
				if err != nil {
					return metrics.Bundle{}, err
				}
				scheduled, err := scheduler.Schedule(fillEvent, priorityFill)
				if err != nil {
					return metrics.Bundle{}, err
				}
				pendingFills[scheduled.EventID] = fill
			}

		case core.EventNews:
			lastTruth = latent.Step(stepMs)
			event.Payload = map[string]any{"p_t": lastTruth}
			recorder.Record(event)

			for _, agent := range roster {
				observed := signalModel.Observe(agent.AgentID(), ts, lastTruth)
				private, err := core.NewEvent(
					fmt.Sprintf("news-private-%s-%s", agent.AgentID(), event.EventID),
					ts, core.EventNews,
					map[string]any{"signal": observed, "p_t": observed},
				)
				if err != nil {
					return metrics.Bundle{}, err
				}
				agent.OnEvent(private)
			}

			if clob, isCLOB := mechanism.(*engine.CLOB); isCLOB {
				bid, bidSize, hasBid := clob.BestBid()
				ask, askSize, hasAsk := clob.BestAsk()
				if hasBid && hasAsk {
					eventSeq++
					quote, err := core.NewEvent(
						fmt.Sprintf("quote-%d", eventSeq), ts, core.EventQuote,
						map[string]any{
							"bid":      bid,
							"ask":      ask,
							"best_bid": bid,
							"best_ask": ask,
							"bid_size": bidSize,
							"ask_size": askSize,
						},
					)
					if err != nil {
						return metrics.Bundle{}, err
					}
					recorder.Record(quote)
					for _, agent := range roster {
						agent.OnEvent(quote)
					}
				}
			}

			for _, agent := range roster {
				if informedProb < 1 && strings.HasPrefix(agent.AgentID(), "inf") &&
					decisionRNG.Float64() >= informedProb {
					continue
				}
				for _, intent := range agent.GenerateIntents(ts) {
					eventSeq++
					orderEvent, err := core.NewEvent(
						fmt.Sprintf("order-%d", eventSeq), ts+submitDelayMs, core.EventOrder,
						map[string]any{
							"agent_id": intent.AgentID,
							"side":     string(intent.Side),
							"price":    intent.Price,
							"size":     intent.Size,
						},
					)
					if err != nil {
						return metrics.Bundle{}, err
					}
					scheduled, err := scheduler.Schedule(orderEvent, priorityOrder)
					if err != nil {
						return metrics.Bundle{}, err
					}
					pendingIntents[scheduled.EventID] = intent
				}
			}
		}
	}

	return recorder.BuildBundle(scenario.ScenarioID, scenario.Seed, mechanism.Name(), lastTruth)
}

func paramInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func paramFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
