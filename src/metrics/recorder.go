// Package metrics records run artifacts and derives the reporting bundle
// every experiment must emit.
package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"proteus/src/accounting"
	"proteus/src/core"
)

// SchemaVersion tags every bundle so downstream analysis can reject runs
// produced under an incompatible layout.
const SchemaVersion = "1.0.0"

// NonNegotiableMetrics must be present in every bundle regardless of
// mechanism or scenario.
var NonNegotiableMetrics = []string{
	"mm_pnl",
	"mm_max_drawdown",
	"mm_adverse_selection_loss",
	"mm_abs_inventory",
	"market_spread_mean",
	"market_traded_volume",
	"fill_count",
}

// mmAgentPrefix identifies market-maker accounts in the fill stream.
const mmAgentPrefix = "mm"

// SummaryRow is one line of the human-readable metric table.
type SummaryRow struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Bundle is the complete artifact of one run.
type Bundle struct {
	SchemaVersion string                          `json:"schema_version"`
	ScenarioID    string                          `json:"scenario_id"`
	Seed          int64                           `json:"seed"`
	Mechanism     string                          `json:"mechanism"`
	MarkPrice     float64                         `json:"mark_price"`
	Metrics       map[string]float64              `json:"metrics"`
	SummaryTable  []SummaryRow                    `json:"summary_table"`
	EventLog      []core.Event                    `json:"event_log"`
	Fills         []core.Fill                     `json:"fills"`
	Violations    []accounting.InvariantViolation `json:"violations,omitempty"`
}

// Recorder is a mechanism-agnostic sink for events and fills.
type Recorder struct {
	events []core.Event
	fills  []core.Fill
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(event core.Event) {
	r.events = append(r.events, event)
}

func (r *Recorder) RecordFill(fill core.Fill) {
	r.fills = append(r.fills, fill)
}

func (r *Recorder) Events() []core.Event { return r.events }

func (r *Recorder) Fills() []core.Fill { return r.fills }

// BuildBundle replays the recorded fills through a fresh accounting engine
// and computes the non-negotiable metric set, marking open inventory at
// markPrice.
func (r *Recorder) BuildBundle(scenarioID string, seed int64, mechanism string, markPrice float64) (Bundle, error) {
	if math.IsNaN(markPrice) || math.IsInf(markPrice, 0) || markPrice < 0.0 || markPrice > 1.0 {
		return Bundle{}, fmt.Errorf("mark price %v outside [0, 1]", markPrice)
	}

	engine := accounting.NewEngine()

	mmPnL := 0.0
	peak := 0.0
	maxDrawdown := 0.0
	asLoss := 0.0
	tradedVolume := 0.0

	for _, fill := range r.fills {
		engine.ProcessFill(fill)
		tradedVolume += fill.Size

		if isMMAgent(fill.BuyAgentID) {
			asLoss += (fill.Price - markPrice) * fill.Size
		}
		if isMMAgent(fill.SellAgentID) {
			asLoss += (markPrice - fill.Price) * fill.Size
		}

		pnl, err := engine.MarkToMarket(markPrice)
		if err != nil {
			return Bundle{}, err
		}
		mmPnL = 0.0
		for agentID, value := range pnl {
			if isMMAgent(agentID) {
				mmPnL += value
			}
		}
		if mmPnL > peak {
			peak = mmPnL
		}
		if drawdown := peak - mmPnL; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	snapshot := engine.Snapshot()
	absInventory := 0.0
	for agentID, account := range snapshot.Accounts {
		if isMMAgent(agentID) {
			absInventory += math.Abs(account.Inventory)
		}
	}

	values := map[string]float64{
		"mm_pnl":                    mmPnL,
		"mm_max_drawdown":           maxDrawdown,
		"mm_adverse_selection_loss": asLoss,
		"mm_abs_inventory":          absInventory,
		"market_spread_mean":        r.meanSpread(),
		"market_traded_volume":      tradedVolume,
		"fill_count":                float64(len(r.fills)),
	}

	summary := make([]SummaryRow, 0, len(values))
	for _, name := range sortedMetricNames(values) {
		summary = append(summary, SummaryRow{Metric: name, Value: values[name]})
	}

	return Bundle{
		SchemaVersion: SchemaVersion,
		ScenarioID:    scenarioID,
		Seed:          seed,
		Mechanism:     mechanism,
		MarkPrice:     markPrice,
		Metrics:       values,
		SummaryTable:  summary,
		EventLog:      append([]core.Event(nil), r.events...),
		Fills:         append([]core.Fill(nil), r.fills...),
		Violations:    snapshot.Violations,
	}, nil
}

// WriteBundle persists the bundle under outputDir, one artifact per consumer:
// the full bundle, the metrics map, a CSV summary, and line-delimited event
// and fill logs. It returns the written paths keyed by artifact name.
func (r *Recorder) WriteBundle(bundle Bundle, outputDir, runID string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	outputs := map[string]string{
		"bundle_json":  filepath.Join(outputDir, runID+"_bundle.json"),
		"metrics_json": filepath.Join(outputDir, runID+"_metrics.json"),
		"summary_csv":  filepath.Join(outputDir, runID+"_summary.csv"),
		"events_jsonl": filepath.Join(outputDir, runID+"_events.jsonl"),
		"fills_jsonl":  filepath.Join(outputDir, runID+"_fills.jsonl"),
	}

	if err := writeJSON(outputs["bundle_json"], bundle); err != nil {
		return nil, err
	}
	if err := writeJSON(outputs["metrics_json"], bundle.Metrics); err != nil {
		return nil, err
	}
	if err := writeSummaryCSV(outputs["summary_csv"], bundle.SummaryTable); err != nil {
		return nil, err
	}
	if err := writeJSONLines(outputs["events_jsonl"], len(bundle.EventLog), func(i int) any { return bundle.EventLog[i] }); err != nil {
		return nil, err
	}
	if err := writeJSONLines(outputs["fills_jsonl"], len(bundle.Fills), func(i int) any { return bundle.Fills[i] }); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (r *Recorder) meanSpread() float64 {
	total, count := 0.0, 0
	for _, event := range r.events {
		if event.Type != core.EventQuote {
			continue
		}
		bid, hasBid := payloadFloat(event.Payload, "bid", "best_bid")
		ask, hasAsk := payloadFloat(event.Payload, "ask", "best_ask")
		if hasBid && hasAsk && ask >= bid {
			total += ask - bid
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return total / float64(count)
}

func isMMAgent(agentID string) bool {
	return strings.HasPrefix(agentID, mmAgentPrefix)
}

func sortedMetricNames(values map[string]float64) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func payloadFloat(payload map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if raw, ok := payload[key]; ok && raw != nil {
			switch v := raw.(type) {
			case float64:
				return v, true
			case float32:
				return float64(v), true
			case int:
				return float64(v), true
			case int64:
				return float64(v), true
			}
		}
	}
	return 0, false
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeSummaryCSV(path string, rows []SummaryRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"metric", "value"}); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	for _, row := range rows {
		record := []string{row.Metric, strconv.FormatFloat(row.Value, 'g', -1, 64)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}

func writeJSONLines(path string, count int, item func(int) any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for i := 0; i < count; i++ {
		if err := encoder.Encode(item(i)); err != nil {
			return fmt.Errorf("encode %s line %d: %w", filepath.Base(path), i, err)
		}
	}
	return file.Close()
}
