package execution

import (
	"testing"

	"proteus/src/core"
)

func TestConstantLatencyModelIncludesAck(t *testing.T) {
	model := ConstantLatencyModel{SubmissionMs: 2, AckMs: 3, FillMs: 5}
	if got := model.SubmissionDelayMs("clob"); got != 2 {
		t.Errorf("SubmissionDelayMs = %d, want 2", got)
	}
	if got := model.AckDelayMs("clob"); got != 3 {
		t.Errorf("AckDelayMs = %d, want 3", got)
	}
	if got := model.FillDelayMs("clob"); got != 5 {
		t.Errorf("FillDelayMs = %d, want 5", got)
	}
}

func TestConfigurableLatencyModelReproducibleWithSeed(t *testing.T) {
	profiles := map[string]LatencyProfile{
		"clob": {SubmissionMs: 1, AckMs: 2, FillMs: 3, JitterMs: 2},
	}
	a := NewConfigurableLatencyModel(profiles, LatencyProfile{}, 11)
	b := NewConfigurableLatencyModel(profiles, LatencyProfile{}, 11)

	for i := 0; i < 6; i++ {
		if x, y := a.SubmissionDelayMs("clob"), b.SubmissionDelayMs("clob"); x != y {
			t.Fatalf("draw %d submission diverged: %d vs %d", i, x, y)
		}
		if x, y := a.AckDelayMs("clob"), b.AckDelayMs("clob"); x != y {
			t.Fatalf("draw %d ack diverged: %d vs %d", i, x, y)
		}
		if x, y := a.FillDelayMs("clob"), b.FillDelayMs("clob"); x != y {
			t.Fatalf("draw %d fill diverged: %d vs %d", i, x, y)
		}
	}
}

func TestConfigurableLatencyModelJitterStaysInRange(t *testing.T) {
	profiles := map[string]LatencyProfile{
		"clob": {SubmissionMs: 5, JitterMs: 3},
	}
	model := NewConfigurableLatencyModel(profiles, LatencyProfile{}, 42)

	for i := 0; i < 100; i++ {
		delay := model.SubmissionDelayMs("clob")
		if delay < 5 || delay > 8 {
			t.Fatalf("draw %d: delay %d out of [5,8]", i, delay)
		}
	}
}

func TestConfigurableLatencyModelFallsBackForUnknownMechanism(t *testing.T) {
	model := NewConfigurableLatencyModel(nil, LatencyProfile{SubmissionMs: 7, AckMs: 8, FillMs: 9}, 1)
	if got := model.SubmissionDelayMs("fba"); got != 7 {
		t.Errorf("SubmissionDelayMs = %d, want fallback 7", got)
	}
	if got := model.AckDelayMs("rfq"); got != 8 {
		t.Errorf("AckDelayMs = %d, want fallback 8", got)
	}
	if got := model.FillDelayMs("clob"); got != 9 {
		t.Errorf("FillDelayMs = %d, want fallback 9", got)
	}
}

func TestDefaultLatencyModelParityAcrossMechanisms(t *testing.T) {
	model := BuildDefaultLatencyModel()
	for _, mechanism := range []string{"clob", "fba", "rfq"} {
		if got := model.SubmissionDelayMs(mechanism); got != 1 {
			t.Errorf("%s submission = %d, want 1", mechanism, got)
		}
		if got := model.AckDelayMs(mechanism); got != 1 {
			t.Errorf("%s ack = %d, want 1", mechanism, got)
		}
		if got := model.FillDelayMs(mechanism); got != 1 {
			t.Errorf("%s fill = %d, want 1", mechanism, got)
		}
	}
}

func TestPublicTapePolicyShowsFullPayload(t *testing.T) {
	event, err := core.NewEvent("e1", 1, core.EventFill, map[string]any{
		"price":        0.5,
		"size":         2.0,
		"buy_agent_id": "a",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	policy := PublicTapeLeakagePolicy{}
	if !policy.IsVisible(event, "x", "clob") {
		t.Fatal("public tape should show every event")
	}
	visible := policy.VisiblePayload(event, "x", "clob")
	if len(visible) != len(event.Payload) {
		t.Fatalf("visible payload %v should match %v", visible, event.Payload)
	}
	for key, value := range event.Payload {
		if visible[key] != value {
			t.Errorf("field %q = %v, want %v", key, visible[key], value)
		}
	}

	// Redaction must never share the event's own map.
	visible["price"] = 0.99
	if event.Payload["price"] != 0.5 {
		t.Error("policy mutated the event payload")
	}
}

func TestDefaultLeakagePolicyParityAcrossMechanisms(t *testing.T) {
	event, err := core.NewEvent("q1", 3, core.EventRFQQuote, map[string]any{
		"request_id": "r1",
		"price":      0.49,
		"dealer_id":  "d1",
		"secret":     "hidden",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	policy := BuildDefaultLeakagePolicy()
	for _, mechanism := range []string{"clob", "fba", "rfq"} {
		visible := policy.VisiblePayload(event, "u1", mechanism)
		if visible["secret"] != "hidden" {
			t.Errorf("%s: default policy should pass the full payload, got %v", mechanism, visible)
		}
	}
}

func TestRFQPrivatePolicyFiltersPrivateFields(t *testing.T) {
	event, err := core.NewEvent("q2", 4, core.EventRFQQuote, map[string]any{
		"request_id":     "r2",
		"price":          0.52,
		"ttl_ms":         250,
		"dealer_id":      "dealer-1",
		"internal_score": 0.91,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	policy := BuildRFQPrivateLeakagePolicy()
	visible := policy.VisiblePayload(event, "observer", "rfq")
	for _, key := range []string{"request_id", "price", "ttl_ms", "dealer_id"} {
		if _, ok := visible[key]; !ok {
			t.Errorf("whitelisted field %q missing from %v", key, visible)
		}
	}
	if _, ok := visible["internal_score"]; ok {
		t.Errorf("internal_score leaked: %v", visible)
	}
}

func TestRFQPrivatePolicyLeavesFillsPublic(t *testing.T) {
	event, err := core.NewEvent("f1", 5, core.EventFill, map[string]any{
		"price": 0.5,
		"size":  1.0,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	policy := RFQPrivateLeakagePolicy{}
	visible := policy.VisiblePayload(event, "observer", "rfq")
	if visible["price"] != 0.5 || visible["size"] != 1.0 {
		t.Fatalf("fill payload should pass through, got %v", visible)
	}
}
