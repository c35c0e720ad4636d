package agents

import (
	"testing"

	"proteus/src/core"
)

func newsEvent(t *testing.T, tsMs int64, signal float64) core.Event {
	t.Helper()
	event, err := core.NewEvent("news-1", tsMs, core.EventNews, map[string]any{"signal": signal})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return event
}

func fillEvent(t *testing.T, tsMs int64, buyAgent, sellAgent string, price, size float64) core.Event {
	t.Helper()
	event, err := core.NewEvent("fill-1", tsMs, core.EventFill, map[string]any{
		"buy_agent_id":  buyAgent,
		"sell_agent_id": sellAgent,
		"price":         price,
		"size":          size,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return event
}

func quoteEvent(t *testing.T, tsMs int64, bid, ask float64) core.Event {
	t.Helper()
	event, err := core.NewEvent("quote-1", tsMs, core.EventQuote, map[string]any{
		"best_bid": bid,
		"best_ask": ask,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return event
}

func TestMarketMakerQuotesBothSidesAroundBelief(t *testing.T) {
	mm := NewMarketMaker("mm", DefaultMarketMakerConfig())

	intents := mm.GenerateIntents(1000)
	if len(intents) != 2 {
		t.Fatalf("expected two-sided quote, got %d intents", len(intents))
	}
	bid, ask := intents[0], intents[1]
	if bid.Side != core.SideBuy || ask.Side != core.SideSell {
		t.Fatalf("expected buy then sell, got %s then %s", bid.Side, ask.Side)
	}
	if bid.Price >= ask.Price {
		t.Fatalf("bid %v must be below ask %v", bid.Price, ask.Price)
	}
	if bid.Price >= 0.5 || ask.Price <= 0.5 {
		t.Fatalf("quotes %v/%v should straddle the initial belief 0.5", bid.Price, ask.Price)
	}
}

func TestMarketMakerBeliefTracksNews(t *testing.T) {
	mm := NewMarketMaker("mm", DefaultMarketMakerConfig())

	// 0.5 -> 0.65*0.5 + 0.35*0.9 = 0.565
	mm.OnEvent(newsEvent(t, 100, 0.9))

	intents := mm.GenerateIntents(200)
	if len(intents) != 2 {
		t.Fatalf("expected two intents, got %d", len(intents))
	}
	mid := (intents[0].Price + intents[1].Price) / 2.0
	if mid <= 0.5 {
		t.Fatalf("mid %v should shift toward the positive signal", mid)
	}
	if diff := mid - 0.565; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("mid %v should equal updated belief 0.565", mid)
	}
}

func TestMarketMakerSkewsQuotesAgainstInventory(t *testing.T) {
	flat := NewMarketMaker("mm", DefaultMarketMakerConfig())
	long := NewMarketMaker("mm", DefaultMarketMakerConfig())

	long.OnEvent(fillEvent(t, 100, "mm", "other", 0.5, 10.0))
	if long.Inventory() != 10.0 {
		t.Fatalf("inventory = %v, want 10", long.Inventory())
	}

	flatQuotes := flat.GenerateIntents(200)
	longQuotes := long.GenerateIntents(200)
	if len(flatQuotes) != 2 || len(longQuotes) != 2 {
		t.Fatalf("expected two-sided quotes from both makers")
	}

	// Long inventory lowers the reservation price, so both quotes shift down.
	if longQuotes[0].Price >= flatQuotes[0].Price {
		t.Errorf("long bid %v should sit below flat bid %v", longQuotes[0].Price, flatQuotes[0].Price)
	}
	if longQuotes[1].Price >= flatQuotes[1].Price {
		t.Errorf("long ask %v should sit below flat ask %v", longQuotes[1].Price, flatQuotes[1].Price)
	}

	flatSpread := flatQuotes[1].Price - flatQuotes[0].Price
	longSpread := longQuotes[1].Price - longQuotes[0].Price
	if longSpread <= flatSpread {
		t.Errorf("spread should widen with inventory: flat %v, long %v", flatSpread, longSpread)
	}
}

func TestMarketMakerQuotesOneSideAtRiskLimit(t *testing.T) {
	cfg := DefaultMarketMakerConfig()
	cfg.MaxInventory = 5.0
	mm := NewMarketMaker("mm", cfg)

	mm.OnEvent(fillEvent(t, 100, "mm", "other", 0.5, 5.0))

	intents := mm.GenerateIntents(200)
	if len(intents) != 1 {
		t.Fatalf("expected one intent at the risk limit, got %d", len(intents))
	}
	if intents[0].Side != core.SideSell {
		t.Fatalf("long maker at the limit should only sell, got %s", intents[0].Side)
	}

	short := NewMarketMaker("mm", cfg)
	short.OnEvent(fillEvent(t, 100, "other", "mm", 0.5, 5.0))

	intents = short.GenerateIntents(200)
	if len(intents) != 1 || intents[0].Side != core.SideBuy {
		t.Fatalf("short maker at the limit should only buy, got %+v", intents)
	}
}

func TestInformedTraderStaysOutWithoutEdge(t *testing.T) {
	trader := NewInformedTrader("inf", DefaultInformedTraderConfig())

	if intents := trader.GenerateIntents(100); intents != nil {
		t.Fatalf("no quotes or signal yet, got %+v", intents)
	}

	trader.OnEvent(newsEvent(t, 100, 0.50))
	trader.OnEvent(quoteEvent(t, 100, 0.495, 0.505))

	if intents := trader.GenerateIntents(200); intents != nil {
		t.Fatalf("edge below threshold, got %+v", intents)
	}
}

func TestInformedTraderBuysAtAskOnStrongSignal(t *testing.T) {
	trader := NewInformedTrader("inf", DefaultInformedTraderConfig())

	trader.OnEvent(newsEvent(t, 100, 0.70))
	trader.OnEvent(quoteEvent(t, 100, 0.49, 0.51))

	intents := trader.GenerateIntents(200)
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(intents))
	}
	got := intents[0]
	if got.Side != core.SideBuy {
		t.Errorf("side = %s, want buy", got.Side)
	}
	if got.Price != 0.51 {
		t.Errorf("price = %v, want the quoted ask 0.51", got.Price)
	}

	// net edge = 0.19 - 0.01, size = 1 + 20*0.18 = 4.6
	if diff := got.Size - 4.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("size = %v, want 4.6", got.Size)
	}
}

func TestInformedTraderSellsAtBidAndCapsSize(t *testing.T) {
	trader := NewInformedTrader("inf", DefaultInformedTraderConfig())

	trader.OnEvent(newsEvent(t, 100, 0.10))
	trader.OnEvent(quoteEvent(t, 100, 0.60, 0.62))

	intents := trader.GenerateIntents(200)
	if len(intents) != 1 {
		t.Fatalf("expected one intent, got %d", len(intents))
	}
	got := intents[0]
	if got.Side != core.SideSell {
		t.Errorf("side = %s, want sell", got.Side)
	}
	if got.Price != 0.60 {
		t.Errorf("price = %v, want the quoted bid 0.60", got.Price)
	}
	if got.Size != DefaultInformedTraderConfig().MaxSize {
		t.Errorf("size = %v, want the cap %v", got.Size, DefaultInformedTraderConfig().MaxSize)
	}
}

func TestNoiseTraderIsSeedDeterministic(t *testing.T) {
	a := NewNoiseTrader("noise-a", 50.0, 42)
	b := NewNoiseTrader("noise-b", 50.0, 42)

	steps := []int64{100, 200, 500, 900}
	var total int
	for _, ts := range steps {
		fromA := a.GenerateIntents(ts)
		fromB := b.GenerateIntents(ts)
		if len(fromA) != len(fromB) {
			t.Fatalf("at ts %d: %d intents vs %d", ts, len(fromA), len(fromB))
		}
		for i := range fromA {
			if fromA[i].Side != fromB[i].Side ||
				fromA[i].Price != fromB[i].Price ||
				fromA[i].Size != fromB[i].Size {
				t.Fatalf("at ts %d intent %d diverged: %+v vs %+v", ts, i, fromA[i], fromB[i])
			}
		}
		total += len(fromA)
	}
	if total == 0 {
		t.Fatal("expected at least one arrival over 900ms at 50/s")
	}
}

func TestNoiseTraderBoundsPriceAndSize(t *testing.T) {
	trader := NewNoiseTrader("noise", 100.0, 7)

	var intents []core.OrderIntent
	for ts := int64(100); ts <= 2000; ts += 100 {
		intents = append(intents, trader.GenerateIntents(ts)...)
	}
	if len(intents) == 0 {
		t.Fatal("expected arrivals over 2s at 100/s")
	}
	for _, intent := range intents {
		if intent.Price < 0.0 || intent.Price > 1.0 {
			t.Errorf("price %v out of [0,1]", intent.Price)
		}
		if intent.Size < 0.25 || intent.Size > 2.0 {
			t.Errorf("size %v out of [0.25,2.0]", intent.Size)
		}
		if intent.Side != core.SideBuy && intent.Side != core.SideSell {
			t.Errorf("unexpected side %q", intent.Side)
		}
	}
}

func TestNoiseTraderIgnoresNonAdvancingTime(t *testing.T) {
	trader := NewNoiseTrader("noise", 100.0, 7)

	trader.GenerateIntents(500)
	if intents := trader.GenerateIntents(500); intents != nil {
		t.Fatalf("repeated timestamp should produce nothing, got %+v", intents)
	}
	if intents := trader.GenerateIntents(100); intents != nil {
		t.Fatalf("regressing timestamp should produce nothing, got %+v", intents)
	}
}
