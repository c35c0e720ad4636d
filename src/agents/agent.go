// Package agents holds the trading strategies that consume market events and
// produce order intents. The mechanisms and scheduler are agnostic to agent
// internals.
package agents

import "proteus/src/core"

// Agent is the base interface for all trading agents.
type Agent interface {
	AgentID() string
	// OnEvent updates internal state from a market event.
	OnEvent(event core.Event)
	// GenerateIntents produces zero or more order intents at the current time.
	GenerateIntents(tsMs int64) []core.OrderIntent
}

// NullAgent is a no-op agent for wiring and smoke tests.
type NullAgent struct {
	ID string
}

func (a *NullAgent) AgentID() string { return a.ID }

func (a *NullAgent) OnEvent(event core.Event) {}

func (a *NullAgent) GenerateIntents(tsMs int64) []core.OrderIntent { return nil }

func clip01(value float64) float64 {
	if value < 0.0 {
		return 0.0
	}
	if value > 1.0 {
		return 1.0
	}
	return value
}

func extractFloat(payload map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if raw, ok := payload[key]; ok && raw != nil {
			switch v := raw.(type) {
			case float64:
				return v, true
			case float32:
				return float64(v), true
			case int:
				return float64(v), true
			case int64:
				return float64(v), true
			}
		}
	}
	return 0, false
}

func extractMid(payload map[string]any) (float64, bool) {
	if mid, ok := extractFloat(payload, "mid_price"); ok {
		return clip01(mid), true
	}
	bid, hasBid := extractFloat(payload, "best_bid", "bid")
	ask, hasAsk := extractFloat(payload, "best_ask", "ask")
	if hasBid && hasAsk {
		return clip01((bid + ask) / 2.0), true
	}
	return 0, false
}
