// Package info models the latent fundamental probability and the per-agent
// signals derived from it.
package info

import (
	"math"
	"math/rand"
)

// LatentProcess produces the latent fundamental probability path p_t.
type LatentProcess interface {
	// Reset reseeds the process for a new run.
	Reset(seed int64)
	// Step advances the process by deltaMs and returns p_t in [0, 1].
	Step(deltaMs int64) float64
}

// StaticLatentProcess holds p_t constant. Used for bootstrap and smoke runs.
type StaticLatentProcess struct {
	p float64
}

func NewStaticLatentProcess(p0 float64) *StaticLatentProcess {
	return &StaticLatentProcess{p: clip01(p0)}
}

func (s *StaticLatentProcess) Reset(seed int64) {}

func (s *StaticLatentProcess) Step(deltaMs int64) float64 { return s.p }

// JumpConfig adds Poisson jump shocks to the log-odds state. The zero value
// disables jumps.
type JumpConfig struct {
	IntensityPerSecond float64
	Mean               float64
	Stddev             float64
}

// logOddsBound keeps the state finite; sigmoid saturates well before it.
const logOddsBound = 30.0

// BoundedLogOddsLatentProcess runs an AR(1) in log-odds space so p_t stays in
// (0, 1) without clipping the path itself. With phi=1 and no noise the process
// is constant; with phi<1 it mean-reverts toward 0.5. Jumps arrive as a
// Poisson stream with Gaussian magnitudes.
type BoundedLogOddsLatentProcess struct {
	p0       float64
	phi      float64
	sigmaEta float64
	jump     JumpConfig

	state float64
	rng   *rand.Rand
}

func NewBoundedLogOddsLatentProcess(p0, phi, sigmaEta float64, jump JumpConfig) *BoundedLogOddsLatentProcess {
	process := &BoundedLogOddsLatentProcess{
		p0:       p0,
		phi:      phi,
		sigmaEta: sigmaEta,
		jump:     jump,
	}
	process.Reset(0)
	return process
}

func (p *BoundedLogOddsLatentProcess) Reset(seed int64) {
	p.rng = rand.New(rand.NewSource(seed))
	p.state = logit(clip01(p.p0))
}

func (p *BoundedLogOddsLatentProcess) Step(deltaMs int64) float64 {
	if deltaMs < 0 {
		deltaMs = 0
	}
	dtSec := float64(deltaMs) / 1000.0

	next := p.phi * p.state
	if p.sigmaEta > 0 && dtSec > 0 {
		next += p.sigmaEta * math.Sqrt(dtSec) * p.rng.NormFloat64()
	}
	if p.jump.IntensityPerSecond > 0 && dtSec > 0 {
		jumps := poissonCount(p.rng, p.jump.IntensityPerSecond*dtSec)
		for i := 0; i < jumps; i++ {
			next += p.jump.Mean + p.jump.Stddev*p.rng.NormFloat64()
		}
	}

	if next > logOddsBound {
		next = logOddsBound
	} else if next < -logOddsBound {
		next = -logOddsBound
	}
	p.state = next
	return sigmoid(next)
}

func logit(p float64) float64 {
	if p <= 0 {
		return -logOddsBound
	}
	if p >= 1 {
		return logOddsBound
	}
	return math.Log(p / (1.0 - p))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func poissonCount(rng *rand.Rand, mean float64) int {
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

func clip01(value float64) float64 {
	if value < 0.0 {
		return 0.0
	}
	if value > 1.0 {
		return 1.0
	}
	return value
}
