package engine

import (
	"testing"

	"proteus/src/core"
)

func TestBuildReturnsRequestedMechanism(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"clob", "clob"},
		{"fba", "fba"},
		{"rfq", "rfq"},
	}
	for _, tc := range cases {
		mechanism, err := Build(core.MechanismConfig{Name: tc.name})
		if err != nil {
			t.Fatalf("Build(%q): %v", tc.name, err)
		}
		if mechanism.Name() != tc.want {
			t.Errorf("Build(%q).Name() = %q, want %q", tc.name, mechanism.Name(), tc.want)
		}
	}
}

func TestBuildRejectsUnknownMechanism(t *testing.T) {
	if _, err := Build(core.MechanismConfig{Name: "dark-pool"}); err == nil {
		t.Fatal("expected an error for an unknown mechanism name")
	}
}

func TestValidateIntentTIFHandling(t *testing.T) {
	intent := core.NewOrderIntent("o1", "a", 0, core.SideBuy, 0.5, 1.0)
	if err := validateIntent(intent); err != nil {
		t.Fatalf("GTC intent should validate: %v", err)
	}

	intent.TIF = ""
	if err := validateIntent(intent); err != nil {
		t.Fatalf("empty TIF defaults to GTC: %v", err)
	}

	intent.TIF = "IOC"
	if err := validateIntent(intent); err == nil {
		t.Fatal("IOC is not supported and must be rejected")
	}
}
