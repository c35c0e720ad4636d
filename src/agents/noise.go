package agents

import (
	"fmt"
	"math"
	"math/rand"

	"proteus/src/core"
)

// NoiseTrader submits uninformed orders with seeded Poisson arrival times,
// uniform prices in [0,1], and uniform sizes in [minSize, maxSize]. All draws
// come from its own generator, so two traders built from the same seed
// produce identical order streams.
type NoiseTrader struct {
	id            string
	ratePerSecond float64
	minSize       float64
	maxSize       float64
	rng           *rand.Rand
	lastTsMs      int64
	intentSeq     int64
}

func NewNoiseTrader(agentID string, arrivalRatePerSecond float64, seed int64) *NoiseTrader {
	return &NoiseTrader{
		id:            agentID,
		ratePerSecond: arrivalRatePerSecond,
		minSize:       0.25,
		maxSize:       2.0,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (a *NoiseTrader) AgentID() string { return a.id }

func (a *NoiseTrader) OnEvent(event core.Event) {}

func (a *NoiseTrader) GenerateIntents(tsMs int64) []core.OrderIntent {
	if tsMs < 0 || tsMs <= a.lastTsMs {
		return nil
	}

	elapsedMs := tsMs - a.lastTsMs
	a.lastTsMs = tsMs

	mean := a.ratePerSecond * float64(elapsedMs) / 1000.0
	arrivals := poissonDraw(a.rng, mean)

	var intents []core.OrderIntent
	for i := 0; i < arrivals; i++ {
		side := core.SideBuy
		if a.rng.Float64() < 0.5 {
			side = core.SideSell
		}
		price := a.rng.Float64()
		size := a.minSize + a.rng.Float64()*(a.maxSize-a.minSize)

		a.intentSeq++
		intents = append(intents, core.NewOrderIntent(
			fmt.Sprintf("%s-%d-%d", a.id, tsMs, a.intentSeq),
			a.id, tsMs, side, price, size,
		))
	}
	return intents
}

// poissonDraw samples a Poisson count by multiplying uniforms (Knuth). Means
// in one simulation step are small, so the loop stays short.
func poissonDraw(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	limit := math.Exp(-mean)
	count := 0
	product := rng.Float64()
	for product > limit {
		count++
		product *= rng.Float64()
	}
	return count
}
