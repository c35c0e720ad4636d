// Package execution models the frictions between agents and mechanisms:
// message latency and information leakage.
package execution

import "math/rand"

// LatencyModel computes the message delays applied around a mechanism. Delays
// can differ per mechanism so venue designs with different plumbing can be
// compared under one scenario.
type LatencyModel interface {
	// SubmissionDelayMs is the delay from intent creation to mechanism submit.
	SubmissionDelayMs(mechanism string) int64
	// AckDelayMs is the delay from submit to the agent seeing the ack.
	AckDelayMs(mechanism string) int64
	// FillDelayMs is the delay from match to fill confirmation.
	FillDelayMs(mechanism string) int64
}

// ConstantLatencyModel applies the same fixed delays to every mechanism.
type ConstantLatencyModel struct {
	SubmissionMs int64
	AckMs        int64
	FillMs       int64
}

func (m ConstantLatencyModel) SubmissionDelayMs(mechanism string) int64 { return m.SubmissionMs }

func (m ConstantLatencyModel) AckDelayMs(mechanism string) int64 { return m.AckMs }

func (m ConstantLatencyModel) FillDelayMs(mechanism string) int64 { return m.FillMs }

// LatencyProfile is one mechanism's delay configuration. JitterMs adds a
// uniform integer jitter in [0, JitterMs] to every draw.
type LatencyProfile struct {
	SubmissionMs int64
	AckMs        int64
	FillMs       int64
	JitterMs     int64
}

// ConfigurableLatencyModel holds a per-mechanism profile with seeded jitter.
// Two models built from the same profiles and seed produce identical delay
// sequences.
type ConfigurableLatencyModel struct {
	perMechanism map[string]LatencyProfile
	fallback     LatencyProfile
	rng          *rand.Rand
}

func NewConfigurableLatencyModel(perMechanism map[string]LatencyProfile, fallback LatencyProfile, seed int64) *ConfigurableLatencyModel {
	profiles := make(map[string]LatencyProfile, len(perMechanism))
	for name, profile := range perMechanism {
		profiles[name] = profile
	}
	return &ConfigurableLatencyModel{
		perMechanism: profiles,
		fallback:     fallback,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

func (m *ConfigurableLatencyModel) profile(mechanism string) LatencyProfile {
	if profile, ok := m.perMechanism[mechanism]; ok {
		return profile
	}
	return m.fallback
}

func (m *ConfigurableLatencyModel) draw(base, jitter int64) int64 {
	if jitter > 0 {
		base += m.rng.Int63n(jitter + 1)
	}
	if base < 0 {
		return 0
	}
	return base
}

func (m *ConfigurableLatencyModel) SubmissionDelayMs(mechanism string) int64 {
	profile := m.profile(mechanism)
	return m.draw(profile.SubmissionMs, profile.JitterMs)
}

func (m *ConfigurableLatencyModel) AckDelayMs(mechanism string) int64 {
	profile := m.profile(mechanism)
	return m.draw(profile.AckMs, profile.JitterMs)
}

func (m *ConfigurableLatencyModel) FillDelayMs(mechanism string) int64 {
	profile := m.profile(mechanism)
	return m.draw(profile.FillMs, profile.JitterMs)
}

// BuildDefaultLatencyModel gives every mechanism an identical 1ms delay on
// each leg, so baseline comparisons are not confounded by plumbing.
func BuildDefaultLatencyModel() LatencyModel {
	return ConstantLatencyModel{SubmissionMs: 1, AckMs: 1, FillMs: 1}
}
