package agents

import (
	"fmt"

	"proteus/src/core"
)

// InformedTraderConfig tunes the thresholded informed strategy.
type InformedTraderConfig struct {
	Theta          float64
	FeeBps         float64
	LatencyPenalty float64
	MinSize        float64
	MaxSize        float64
	SizeSlope      float64
}

func DefaultInformedTraderConfig() InformedTraderConfig {
	return InformedTraderConfig{
		Theta:     0.01,
		MinSize:   1.0,
		MaxSize:   5.0,
		SizeSlope: 20.0,
	}
}

// InformedTrader crosses the spread when its signal diverges from the quoted
// price by more than a threshold, sizing up with the net edge.
type InformedTrader struct {
	id  string
	cfg InformedTraderConfig

	signal    float64
	hasSignal bool
	bestBid   float64
	hasBid    bool
	bestAsk   float64
	hasAsk    bool
	intentSeq int64
}

func NewInformedTrader(agentID string, cfg InformedTraderConfig) *InformedTrader {
	return &InformedTrader{id: agentID, cfg: cfg}
}

func (a *InformedTrader) AgentID() string { return a.id }

func (a *InformedTrader) OnEvent(event core.Event) {
	if event.Type == core.EventNews {
		if signal, ok := extractFloat(event.Payload, "signal", "belief", "p_t"); ok {
			a.signal = clip01(signal)
			a.hasSignal = true
		}
		return
	}

	if bid, ok := extractFloat(event.Payload, "best_bid", "bid"); ok {
		a.bestBid = clip01(bid)
		a.hasBid = true
	}
	if ask, ok := extractFloat(event.Payload, "best_ask", "ask"); ok {
		a.bestAsk = clip01(ask)
		a.hasAsk = true
	}
}

func (a *InformedTrader) GenerateIntents(tsMs int64) []core.OrderIntent {
	if tsMs < 0 || !a.hasSignal || !a.hasBid || !a.hasAsk {
		return nil
	}

	threshold := a.cfg.Theta + a.cfg.FeeBps/10_000.0 + a.cfg.LatencyPenalty
	buyEdge := a.signal - a.bestAsk
	sellEdge := a.bestBid - a.signal

	if buyEdge <= threshold && sellEdge <= threshold {
		return nil
	}

	if buyEdge >= sellEdge {
		size := a.sizeForEdge(buyEdge - threshold)
		return []core.OrderIntent{a.makeIntent(tsMs, core.SideBuy, a.bestAsk, size)}
	}
	size := a.sizeForEdge(sellEdge - threshold)
	return []core.OrderIntent{a.makeIntent(tsMs, core.SideSell, a.bestBid, size)}
}

func (a *InformedTrader) sizeForEdge(netEdge float64) float64 {
	if netEdge < 0 {
		netEdge = 0
	}
	raw := a.cfg.MinSize + a.cfg.SizeSlope*netEdge
	if raw > a.cfg.MaxSize {
		return a.cfg.MaxSize
	}
	if raw < a.cfg.MinSize {
		return a.cfg.MinSize
	}
	return raw
}

func (a *InformedTrader) makeIntent(tsMs int64, side core.Side, price, size float64) core.OrderIntent {
	a.intentSeq++
	return core.NewOrderIntent(
		fmt.Sprintf("%s-%d-%d", a.id, tsMs, a.intentSeq),
		a.id, tsMs, side, clip01(price), size,
	)
}
