package engine

import (
	"errors"
	"fmt"
	"math"

	"proteus/src/core"
)

var (
	ErrInvalidTimestamp = errors.New("intent ts_ms must be non-negative")
	ErrInvalidPrice     = errors.New("price must be finite and in [0,1]")
	ErrInvalidSize      = errors.New("size must be finite and > 0")
	ErrDuplicateOrder   = errors.New("intent_id duplicates an existing order")
	ErrUnsupportedTIF   = errors.New("only GTC orders are supported")
)

// Mechanism is the common interface for market mechanisms. Submit rejects
// malformed intents with an error and leaves state untouched; Cancel is a
// benign no-op on unknown or foreign orders; Clear executes matching and
// emits fills.
type Mechanism interface {
	Name() string
	Submit(intent core.OrderIntent) error
	Cancel(intent core.CancelIntent)
	Clear(tsMs int64) []core.Fill
}

// Build creates a mechanism from configuration, keyed by name.
func Build(cfg core.MechanismConfig) (Mechanism, error) {
	switch cfg.Name {
	case "clob":
		return NewCLOB(), nil
	case "fba":
		return NewFBA(), nil
	case "rfq":
		return NewRFQ(), nil
	}
	return nil, fmt.Errorf("unsupported mechanism: %q", cfg.Name)
}

func validateIntent(intent core.OrderIntent) error {
	if intent.TsMs < 0 {
		return fmt.Errorf("intent %q: %w", intent.IntentID, ErrInvalidTimestamp)
	}
	if math.IsNaN(intent.Price) || math.IsInf(intent.Price, 0) || intent.Price < 0.0 || intent.Price > 1.0 {
		return fmt.Errorf("intent %q: %w (got %v)", intent.IntentID, ErrInvalidPrice, intent.Price)
	}
	if math.IsNaN(intent.Size) || math.IsInf(intent.Size, 0) || intent.Size <= 0.0 {
		return fmt.Errorf("intent %q: %w (got %v)", intent.IntentID, ErrInvalidSize, intent.Size)
	}
	if intent.TIF != "" && intent.TIF != "GTC" {
		return fmt.Errorf("intent %q: %w (got %q)", intent.IntentID, ErrUnsupportedTIF, intent.TIF)
	}
	return nil
}

// restingOrder is owned exclusively by a mechanism's book. Remaining size is
// decremented in place on fills and zeroed on cancel; zero-size orders are
// lazily pruned, never matched.
type restingOrder struct {
	orderID   string
	agentID   string
	side      core.Side
	price     float64
	remaining float64
	tsMs      int64
	seqNo     int64
}
