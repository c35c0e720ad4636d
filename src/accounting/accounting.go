// Package accounting replays fills into per-agent cash/inventory ledgers and
// enforces zero-sum and conservation invariants. Invalid fills are recorded
// as violations and skipped rather than aborting the run: bad data is a
// signal for the harness, not a crash.
package accounting

import (
	"fmt"
	"math"

	"proteus/src/core"
)

const DefaultTolerance = 1e-9

// sentinel used when a violation predates any processed fill
const noFillsSentinel = "no-fills"

// AgentAccount is per-agent cash and inventory state, mutated only by the
// engine's fill-application step.
type AgentAccount struct {
	Cash      float64 `json:"cash"`
	Inventory float64 `json:"inventory"`
}

// Equity is mark-to-market equity at the provided contract price.
func (a AgentAccount) Equity(markPrice float64) float64 {
	return a.Cash + a.Inventory*markPrice
}

// InvariantViolation is a single invariant breach tied to the source fill id.
type InvariantViolation struct {
	EventID string `json:"event_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is a point-in-time immutable copy of ledger state.
type Snapshot struct {
	Accounts       map[string]AgentAccount `json:"accounts"`
	TotalCash      float64                 `json:"total_cash"`
	TotalInventory float64                 `json:"total_inventory"`
	Violations     []InvariantViolation    `json:"violations"`
	ProcessedFills int                     `json:"processed_fills"`
}

// Engine replays fills into agent accounts. One engine is owned exclusively
// by one run and mutated only through its public operations.
type Engine struct {
	accounts       map[string]*AgentAccount
	violations     []InvariantViolation
	processedFills int
	lastFillID     string
	tolerance      float64
}

func NewEngine() *Engine {
	return NewEngineWithTolerance(DefaultTolerance)
}

func NewEngineWithTolerance(tolerance float64) *Engine {
	return &Engine{
		accounts:  make(map[string]*AgentAccount),
		tolerance: tolerance,
	}
}

// Reset clears accounts, violations, and the fill counter entirely.
func (e *Engine) Reset() {
	e.accounts = make(map[string]*AgentAccount)
	e.violations = nil
	e.processedFills = 0
	e.lastFillID = ""
}

// ProcessFill applies one fill and evaluates per-fill invariants. Invalid
// fills are recorded and skipped; invariant drift beyond tolerance is
// recorded but never reverted.
func (e *Engine) ProcessFill(fill core.Fill) {
	e.lastFillID = fill.FillID
	if !e.validateFill(fill) {
		return
	}

	buyer := e.account(fill.BuyAgentID)
	seller := e.account(fill.SellAgentID)

	priorCash := e.totalCash()
	priorInventory := e.totalInventory()

	notional := fill.Price * fill.Size
	buyerCashDelta := -notional
	sellerCashDelta := notional
	buyerInventoryDelta := fill.Size
	sellerInventoryDelta := -fill.Size

	buyer.Cash += buyerCashDelta
	seller.Cash += sellerCashDelta
	buyer.Inventory += buyerInventoryDelta
	seller.Inventory += sellerInventoryDelta
	e.processedFills++

	e.checkZeroSumTransfer(fill.FillID, buyerCashDelta, sellerCashDelta, "cash")
	e.checkZeroSumTransfer(fill.FillID, buyerInventoryDelta, sellerInventoryDelta, "inventory")
	// Aggregate conservation is redundant with the per-leg checks but runs
	// independently as defense in depth.
	e.checkConservation(fill.FillID, priorCash, e.totalCash(), "cash")
	e.checkConservation(fill.FillID, priorInventory, e.totalInventory(), "inventory")
}

// ProcessFills applies many fills in the given order without re-sorting;
// callers are responsible for chronological delivery.
func (e *Engine) ProcessFills(fills []core.Fill) Snapshot {
	for _, fill := range fills {
		e.ProcessFill(fill)
	}
	return e.Snapshot()
}

// MarkToMarket returns equity per agent at the given reference price.
func (e *Engine) MarkToMarket(markPrice float64) (map[string]float64, error) {
	if math.IsNaN(markPrice) || math.IsInf(markPrice, 0) {
		return nil, fmt.Errorf("mark price must be finite, got %v", markPrice)
	}
	out := make(map[string]float64, len(e.accounts))
	for agentID, account := range e.accounts {
		out[agentID] = account.Equity(markPrice)
	}
	return out, nil
}

// SettlementPnL computes realized PnL for a binary payoff outcome in [0,1].
// A non-zero aggregate beyond tolerance is recorded as a pnl_non_zero_sum
// violation tagged with the last processed fill id.
func (e *Engine) SettlementPnL(outcome float64) (map[string]float64, error) {
	if math.IsNaN(outcome) || math.IsInf(outcome, 0) || outcome < 0.0 || outcome > 1.0 {
		return nil, fmt.Errorf("outcome must be finite and in [0,1], got %v", outcome)
	}

	pnl, err := e.MarkToMarket(outcome)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, value := range pnl {
		total += value
	}
	if math.Abs(total) > e.tolerance {
		eventID := e.lastFillID
		if eventID == "" {
			eventID = noFillsSentinel
		}
		e.violations = append(e.violations, InvariantViolation{
			EventID: eventID,
			Code:    "pnl_non_zero_sum",
			Message: fmt.Sprintf("settlement pnl sum drifted by %v", total),
		})
	}
	return pnl, nil
}

// Snapshot deep-copies accounts and the violation log; engine state is left
// untouched.
func (e *Engine) Snapshot() Snapshot {
	accounts := make(map[string]AgentAccount, len(e.accounts))
	for agentID, account := range e.accounts {
		accounts[agentID] = *account
	}
	violations := make([]InvariantViolation, len(e.violations))
	copy(violations, e.violations)

	return Snapshot{
		Accounts:       accounts,
		TotalCash:      e.totalCash(),
		TotalInventory: e.totalInventory(),
		Violations:     violations,
		ProcessedFills: e.processedFills,
	}
}

func (e *Engine) account(agentID string) *AgentAccount {
	if account, ok := e.accounts[agentID]; ok {
		return account
	}
	account := &AgentAccount{}
	e.accounts[agentID] = account
	return account
}

func (e *Engine) validateFill(fill core.Fill) bool {
	if math.IsNaN(fill.Price) || math.IsInf(fill.Price, 0) || fill.Price < 0.0 || fill.Price > 1.0 {
		e.violations = append(e.violations, InvariantViolation{
			EventID: fill.FillID,
			Code:    "invalid_fill_price",
			Message: fmt.Sprintf("fill price must be within [0,1], got %v", fill.Price),
		})
		return false
	}
	if math.IsNaN(fill.Size) || math.IsInf(fill.Size, 0) || fill.Size <= 0.0 {
		e.violations = append(e.violations, InvariantViolation{
			EventID: fill.FillID,
			Code:    "invalid_fill_size",
			Message: fmt.Sprintf("fill size must be > 0, got %v", fill.Size),
		})
		return false
	}
	return true
}

func (e *Engine) checkZeroSumTransfer(eventID string, firstLeg, secondLeg float64, quantity string) {
	drift := firstLeg + secondLeg
	if math.Abs(drift) > e.tolerance {
		e.violations = append(e.violations, InvariantViolation{
			EventID: eventID,
			Code:    quantity + "_transfer_not_zero_sum",
			Message: fmt.Sprintf("%s transfer drifted by %v", quantity, drift),
		})
	}
}

func (e *Engine) checkConservation(eventID string, before, after float64, quantity string) {
	drift := after - before
	if math.Abs(drift) > e.tolerance {
		e.violations = append(e.violations, InvariantViolation{
			EventID: eventID,
			Code:    quantity + "_conservation_violation",
			Message: fmt.Sprintf("total %s drifted by %v", quantity, drift),
		})
	}
}

func (e *Engine) totalCash() float64 {
	total := 0.0
	for _, account := range e.accounts {
		total += account.Cash
	}
	return total
}

func (e *Engine) totalInventory() float64 {
	total := 0.0
	for _, account := range e.accounts {
		total += account.Inventory
	}
	return total
}
