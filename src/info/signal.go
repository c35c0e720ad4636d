package info

import (
	"math/rand"
	"sort"
)

// SignalModel maps the latent truth to an agent-specific observation.
type SignalModel interface {
	Reset(seed int64)
	// Observe records the truth sample at tsMs and returns the agent's view
	// of it, in [0, 1].
	Observe(agentID string, tsMs int64, pT float64) float64
}

// IdentitySignalModel exposes the truth directly.
type IdentitySignalModel struct{}

func (IdentitySignalModel) Reset(seed int64) {}

func (IdentitySignalModel) Observe(agentID string, tsMs int64, pT float64) float64 {
	return clip01(pT)
}

// AgentSignalConfig sets how degraded one agent's view of the truth is.
type AgentSignalConfig struct {
	DelayMs     int64
	NoiseStddev float64
}

type truthSample struct {
	tsMs int64
	pT   float64
}

// HeterogeneousSignalModel gives each agent a delayed, noise-corrupted view of
// the latent truth. Agents without an explicit config use the default. The
// delayed value is the latest truth sample at or before ts - delay; before any
// sample is that old, the oldest recorded sample is used.
type HeterogeneousSignalModel struct {
	defaultCfg AgentSignalConfig
	perAgent   map[string]AgentSignalConfig

	history []truthSample
	rng     *rand.Rand
}

func NewHeterogeneousSignalModel(defaultCfg AgentSignalConfig, perAgent map[string]AgentSignalConfig) *HeterogeneousSignalModel {
	model := &HeterogeneousSignalModel{
		defaultCfg: defaultCfg,
		perAgent:   perAgent,
	}
	model.Reset(0)
	return model
}

func (m *HeterogeneousSignalModel) Reset(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
	m.history = m.history[:0]
}

func (m *HeterogeneousSignalModel) Observe(agentID string, tsMs int64, pT float64) float64 {
	m.record(tsMs, clip01(pT))

	cfg, ok := m.perAgent[agentID]
	if !ok {
		cfg = m.defaultCfg
	}

	observed := m.delayedTruth(tsMs - cfg.DelayMs)
	if cfg.NoiseStddev > 0 {
		observed += cfg.NoiseStddev * m.rng.NormFloat64()
	}
	return clip01(observed)
}

func (m *HeterogeneousSignalModel) record(tsMs int64, pT float64) {
	n := len(m.history)
	if n > 0 && m.history[n-1].tsMs == tsMs {
		m.history[n-1].pT = pT
		return
	}
	m.history = append(m.history, truthSample{tsMs: tsMs, pT: pT})
	if n > 0 && m.history[n-1].tsMs > tsMs {
		sort.Slice(m.history, func(i, j int) bool {
			return m.history[i].tsMs < m.history[j].tsMs
		})
	}
}

func (m *HeterogeneousSignalModel) delayedTruth(cutoffMs int64) float64 {
	best, found := 0.0, false
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].tsMs <= cutoffMs {
			best, found = m.history[i].pT, true
			break
		}
	}
	if !found {
		return m.history[0].pT
	}
	return best
}
