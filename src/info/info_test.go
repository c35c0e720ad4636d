package info

import (
	"math"
	"testing"
)

func TestLatentProcessStaysBoundedWithNoiseAndJumps(t *testing.T) {
	process := NewBoundedLogOddsLatentProcess(0.35, 0.98, 0.8, JumpConfig{
		IntensityPerSecond: 5.0,
		Mean:               0.0,
		Stddev:             0.4,
	})

	for i := 0; i < 1000; i++ {
		pT := process.Step(10)
		if pT < 0.0 || pT > 1.0 {
			t.Fatalf("step %d: p_t = %v out of [0,1]", i, pT)
		}
	}
}

func TestLatentProcessConstantWhenPhiOneAndNoNoise(t *testing.T) {
	process := NewBoundedLogOddsLatentProcess(0.42, 1.0, 0.0, JumpConfig{})
	process.Reset(9)

	first := process.Step(100)
	if math.Abs(first-0.42) > 1e-12 {
		t.Fatalf("first step = %v, want 0.42", first)
	}
	for i := 0; i < 4; i++ {
		if got := process.Step(100); got != first {
			t.Fatalf("step %d drifted: %v != %v", i+2, got, first)
		}
	}
}

func TestLatentProcessMeanRevertsTowardHalf(t *testing.T) {
	process := NewBoundedLogOddsLatentProcess(0.8, 0.9, 0.0, JumpConfig{})
	process.Reset(1)

	pStart := process.Step(10)
	pLater := process.Step(10)
	if pLater >= pStart {
		t.Fatalf("expected decay toward 0.5: %v then %v", pStart, pLater)
	}
	if pStart >= 0.8 || pLater <= 0.5 {
		t.Fatalf("path %v, %v should sit between 0.5 and 0.8", pStart, pLater)
	}
}

func TestLatentProcessResetReplaysPath(t *testing.T) {
	process := NewBoundedLogOddsLatentProcess(0.5, 0.97, 0.3, JumpConfig{IntensityPerSecond: 2.0, Stddev: 0.2})

	process.Reset(123)
	var first []float64
	for i := 0; i < 50; i++ {
		first = append(first, process.Step(10))
	}

	process.Reset(123)
	for i := 0; i < 50; i++ {
		if got := process.Step(10); got != first[i] {
			t.Fatalf("step %d diverged after reset: %v != %v", i, got, first[i])
		}
	}
}

func TestStaticLatentProcessIgnoresTimeAndSeed(t *testing.T) {
	process := NewStaticLatentProcess(0.37)
	process.Reset(99)
	for _, delta := range []int64{0, 10, 1000} {
		if got := process.Step(delta); got != 0.37 {
			t.Fatalf("Step(%d) = %v, want 0.37", delta, got)
		}
	}
}

func TestIdentitySignalModelClipsTruth(t *testing.T) {
	model := IdentitySignalModel{}
	if got := model.Observe("a", 10, 0.4); got != 0.4 {
		t.Errorf("Observe = %v, want 0.4", got)
	}
	if got := model.Observe("a", 20, 1.7); got != 1.0 {
		t.Errorf("Observe = %v, want clipped 1.0", got)
	}
	if got := model.Observe("a", 30, -0.2); got != 0.0 {
		t.Errorf("Observe = %v, want clipped 0.0", got)
	}
}

func TestSignalModelDelayAndNoiseHeterogeneity(t *testing.T) {
	model := NewHeterogeneousSignalModel(
		AgentSignalConfig{},
		map[string]AgentSignalConfig{
			"fast":  {DelayMs: 0, NoiseStddev: 0.0},
			"slow":  {DelayMs: 20, NoiseStddev: 0.0},
			"noisy": {DelayMs: 0, NoiseStddev: 0.2},
		},
	)
	model.Reset(77)

	truth := []struct {
		tsMs int64
		pT   float64
	}{
		{0, 0.10},
		{10, 0.30},
		{20, 0.90},
	}

	for i, sample := range truth {
		if got := model.Observe("fast", sample.tsMs, sample.pT); got != sample.pT {
			t.Errorf("fast obs %d = %v, want %v", i, got, sample.pT)
		}
	}

	model.Reset(77)
	for i, sample := range truth {
		// 20ms behind, so every observation still sees the oldest sample.
		if got := model.Observe("slow", sample.tsMs, sample.pT); got != 0.10 {
			t.Errorf("slow obs %d = %v, want 0.10", i, got)
		}
	}

	model.Reset(77)
	var perturbed bool
	for _, sample := range truth {
		got := model.Observe("noisy", sample.tsMs, sample.pT)
		if got < 0.0 || got > 1.0 {
			t.Errorf("noisy obs %v out of [0,1]", got)
		}
		if got != sample.pT {
			perturbed = true
		}
	}
	if !perturbed {
		t.Error("noisy agent should not see the exact truth")
	}
}

func TestSignalModelUnknownAgentUsesDefault(t *testing.T) {
	model := NewHeterogeneousSignalModel(
		AgentSignalConfig{DelayMs: 10},
		map[string]AgentSignalConfig{"fast": {}},
	)
	model.Reset(5)

	model.Observe("other", 0, 0.2)
	if got := model.Observe("other", 10, 0.6); got != 0.2 {
		t.Fatalf("defaulted agent should lag by 10ms: got %v, want 0.2", got)
	}
}
