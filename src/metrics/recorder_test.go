package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proteus/src/core"
)

func sampleRecorder(t *testing.T) *Recorder {
	t.Helper()
	recorder := NewRecorder()

	news, err := core.NewEvent("news-1", 0, core.EventNews, map[string]any{"p_t": 0.5})
	require.NoError(t, err)
	recorder.Record(news)

	order, err := core.NewEvent("ord-1", 1, core.EventOrder, map[string]any{"agent_id": "noise-1"})
	require.NoError(t, err)
	recorder.Record(order)

	quote, err := core.NewEvent("quote-1", 1, core.EventQuote, map[string]any{
		"bid":      0.49,
		"ask":      0.51,
		"bid_size": 8.0,
		"ask_size": 9.0,
	})
	require.NoError(t, err)
	recorder.Record(quote)

	recorder.RecordFill(core.Fill{
		FillID: "fill-1", TsMs: 2,
		BuyAgentID: "noise-1", SellAgentID: "mm-1",
		Price: 0.51, Size: 2.0,
	})
	recorder.RecordFill(core.Fill{
		FillID: "fill-2", TsMs: 3,
		BuyAgentID: "mm-1", SellAgentID: "inf-1",
		Price: 0.49, Size: 1.0,
	})
	return recorder
}

func TestBundleSchemaAndMetricsAreStable(t *testing.T) {
	recorder := sampleRecorder(t)

	bundle, err := recorder.BuildBundle("unit_scenario", 11, "clob", 0.5)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, bundle.SchemaVersion)
	for _, name := range NonNegotiableMetrics {
		assert.Contains(t, bundle.Metrics, name)
	}
	assert.Len(t, bundle.SummaryTable, len(bundle.Metrics))
	assert.NotEmpty(t, bundle.EventLog)
	assert.NotEmpty(t, bundle.Fills)
	assert.Empty(t, bundle.Violations)
}

func TestBundleMetricValues(t *testing.T) {
	recorder := sampleRecorder(t)

	bundle, err := recorder.BuildBundle("unit_scenario", 11, "clob", 0.5)
	require.NoError(t, err)

	// mm-1 sold 2 @ 0.51 then bought 1 @ 0.49; marked at 0.5.
	assert.InDelta(t, 0.03, bundle.Metrics["mm_pnl"], 1e-9)
	assert.InDelta(t, 0.0, bundle.Metrics["mm_max_drawdown"], 1e-9)
	assert.InDelta(t, -0.03, bundle.Metrics["mm_adverse_selection_loss"], 1e-9)
	assert.InDelta(t, 1.0, bundle.Metrics["mm_abs_inventory"], 1e-9)
	assert.InDelta(t, 0.02, bundle.Metrics["market_spread_mean"], 1e-9)
	assert.InDelta(t, 3.0, bundle.Metrics["market_traded_volume"], 1e-9)
	assert.InDelta(t, 2.0, bundle.Metrics["fill_count"], 1e-9)
}

func TestBundleTracksDrawdownThroughTheFillPath(t *testing.T) {
	recorder := NewRecorder()
	recorder.RecordFill(core.Fill{
		FillID: "f1", TsMs: 1,
		BuyAgentID: "noise-1", SellAgentID: "mm-1",
		Price: 0.6, Size: 1.0,
	})
	recorder.RecordFill(core.Fill{
		FillID: "f2", TsMs: 2,
		BuyAgentID: "mm-1", SellAgentID: "noise-1",
		Price: 0.9, Size: 1.0,
	})

	bundle, err := recorder.BuildBundle("dd", 1, "clob", 0.5)
	require.NoError(t, err)

	// Equity peaks at 0.1 after the first fill, then drops to -0.3.
	assert.InDelta(t, -0.3, bundle.Metrics["mm_pnl"], 1e-9)
	assert.InDelta(t, 0.4, bundle.Metrics["mm_max_drawdown"], 1e-9)
}

func TestBuildBundleRejectsInvalidMarkPrice(t *testing.T) {
	recorder := sampleRecorder(t)

	_, err := recorder.BuildBundle("unit_scenario", 11, "clob", 1.5)
	assert.Error(t, err)

	_, err = recorder.BuildBundle("unit_scenario", 11, "clob", -0.1)
	assert.Error(t, err)
}

func TestBundleOnEmptyRecorderIsZeroed(t *testing.T) {
	recorder := NewRecorder()

	bundle, err := recorder.BuildBundle("empty", 1, "clob", 0.5)
	require.NoError(t, err)

	for _, name := range NonNegotiableMetrics {
		assert.Zero(t, bundle.Metrics[name], name)
	}
	assert.Empty(t, bundle.EventLog)
	assert.Empty(t, bundle.Fills)
}

func TestBundleWriterOutputsArtifacts(t *testing.T) {
	recorder := sampleRecorder(t)
	bundle, err := recorder.BuildBundle("unit_scenario", 11, "clob", 0.5)
	require.NoError(t, err)

	dir := t.TempDir()
	outputs, err := recorder.WriteBundle(bundle, dir, "unit-run")
	require.NoError(t, err)

	for _, key := range []string{"bundle_json", "metrics_json", "summary_csv", "events_jsonl", "fills_jsonl"} {
		path, ok := outputs[key]
		require.True(t, ok, key)
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, key)
	}
	assert.Equal(t, filepath.Join(dir, "unit-run_bundle.json"), outputs["bundle_json"])

	data, err := os.ReadFile(outputs["metrics_json"])
	require.NoError(t, err)
	var parsed map[string]float64
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.InDelta(t, bundle.Metrics["mm_pnl"], parsed["mm_pnl"], 1e-12)
}
