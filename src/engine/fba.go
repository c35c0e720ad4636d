package engine

import (
	"fmt"
	"sort"

	"proteus/src/core"
)

// batchLevel is one price level in the auction ladder. Orders are FIFO by
// admission sequence within the level.
type batchLevel struct {
	price  float64
	orders []*restingOrder
}

// FBA is a frequent batch auction: orders accumulate between clears, and each
// Clear crosses the aggregated book at a single uniform price chosen to
// maximize executed volume. Residual orders carry over to the next batch.
type FBA struct {
	book     *ladderBook
	lastFill int64
}

func NewFBA() *FBA {
	return &FBA{book: newLadderBook()}
}

func (f *FBA) Name() string { return "fba" }

func (f *FBA) Submit(intent core.OrderIntent) error {
	return f.book.insert(intent)
}

func (f *FBA) Cancel(intent core.CancelIntent) {
	f.book.cancel(intent)
}

// Clear runs one uniform-price batch auction. The clearing price is the
// midpoint of the price interval that maximizes executable volume; eligible
// orders match in price-time priority and all execute at that single price.
func (f *FBA) Clear(tsMs int64) []core.Fill {
	bids := f.book.liveLevels(core.SideBuy)
	asks := f.book.liveLevels(core.SideSell)
	if len(bids) == 0 || len(asks) == 0 {
		return nil
	}

	clearing, volume := uniformClearingPrice(bids, asks)
	if volume <= 0 {
		return nil
	}

	eligibleBids := flattenEligible(bids, func(p float64) bool { return p >= clearing })
	eligibleAsks := flattenEligible(asks, func(p float64) bool { return p <= clearing })

	var fills []core.Fill
	bi, ai := 0, 0
	for bi < len(eligibleBids) && ai < len(eligibleAsks) {
		bid, ask := eligibleBids[bi], eligibleAsks[ai]
		size := bid.remaining
		if ask.remaining < size {
			size = ask.remaining
		}

		f.lastFill++
		fills = append(fills, core.Fill{
			FillID:      fmt.Sprintf("fill-%d", f.lastFill),
			TsMs:        tsMs,
			BuyAgentID:  bid.agentID,
			SellAgentID: ask.agentID,
			Price:       clearing,
			Size:        size,
		})

		bid.remaining -= size
		ask.remaining -= size
		if bid.remaining <= 0 {
			f.book.drop(bid)
			bi++
		}
		if ask.remaining <= 0 {
			f.book.drop(ask)
			ai++
		}
	}
	return fills
}

// uniformClearingPrice picks the price maximizing min(demand, supply) over
// all level prices, where demand(p) aggregates bids at or above p and
// supply(p) aggregates asks at or below p. Ties resolve to the midpoint of
// the best clearing interval.
func uniformClearingPrice(bids, asks []*batchLevel) (float64, float64) {
	candidates := make([]float64, 0, len(bids)+len(asks))
	for _, level := range bids {
		candidates = append(candidates, level.price)
	}
	for _, level := range asks {
		candidates = append(candidates, level.price)
	}
	sort.Float64s(candidates)

	bestVolume := 0.0
	lowBest, highBest := 0.0, 0.0
	for _, price := range candidates {
		demand := 0.0
		for _, level := range bids {
			if level.price >= price {
				demand += levelSize(level)
			}
		}
		supply := 0.0
		for _, level := range asks {
			if level.price <= price {
				supply += levelSize(level)
			}
		}
		volume := demand
		if supply < volume {
			volume = supply
		}
		if volume > bestVolume {
			bestVolume = volume
			lowBest, highBest = price, price
		} else if volume == bestVolume && volume > 0 {
			highBest = price
		}
	}
	return (lowBest + highBest) / 2.0, bestVolume
}

func levelSize(level *batchLevel) float64 {
	total := 0.0
	for _, order := range level.orders {
		if order.remaining > 0 {
			total += order.remaining
		}
	}
	return total
}

// flattenEligible returns live orders from levels passing the price filter,
// in price priority (levels are already sorted best-first) then admission order.
func flattenEligible(levels []*batchLevel, keep func(float64) bool) []*restingOrder {
	var out []*restingOrder
	for _, level := range levels {
		if !keep(level.price) {
			continue
		}
		for _, order := range level.orders {
			if order.remaining > 0 {
				out = append(out, order)
			}
		}
	}
	return out
}
