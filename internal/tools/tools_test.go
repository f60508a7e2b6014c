package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCalculate(t *testing.T) {
	result := Calculate(500, 200, 30, 0.1)

	assert.InDelta(t, 450.0, result.NetRevenue, 1e-9)
	assert.InDelta(t, 220.0, result.GrossMargin, 1e-9)
	assert.InDelta(t, 220.0/450.0, result.ContributionMargin, 1e-9)
	assert.Equal(t, 46, result.BreakEvenUnits)
}

func TestCalculateNegativeMargin(t *testing.T) {
	result := Calculate(100, 200, 30, 0)

	assert.InDelta(t, -130.0, result.GrossMargin, 1e-9)
	assert.Equal(t, 0, result.BreakEvenUnits)
}

func TestCalculateFullReturns(t *testing.T) {
	result := Calculate(100, 50, 10, 1)

	assert.Zero(t, result.NetRevenue)
	assert.Zero(t, result.ContributionMargin)
}

func TestUnitEconomicsExecute(t *testing.T) {
	out, err := NewUnitEconomics().Execute(context.Background(),
		[]byte(`{"price":500,"cogs":200,"shipping":30,"returnsRate":0.1}`))
	require.NoError(t, err)

	var result UnitEconomicsResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 46, result.BreakEvenUnits)
}

func TestUnitEconomicsRejectsBadReturnsRate(t *testing.T) {
	_, err := NewUnitEconomics().Execute(context.Background(),
		[]byte(`{"price":500,"cogs":200,"shipping":30,"returnsRate":1.5}`))
	assert.Error(t, err)
}

func TestForecast(t *testing.T) {
	forecast := Forecast("US", "6204", 1000)

	assert.InDelta(t, 0.15, forecast.EffectiveRate, 1e-9)
	assert.InDelta(t, 150.0, forecast.TotalDuty, 1e-9)
	assert.Equal(t, "USD", forecast.Currency)
	assert.Equal(t, "US", forecast.CountryCode)
}

func TestAnalyze(t *testing.T) {
	risks := Analyze([]InventoryItem{
		{SKU: "FRESH", Quantity: 10, DaysSinceLastSale: 12},
		{SKU: "SLOW", Quantity: 10, DaysSinceLastSale: 60},
		{SKU: "DEAD", Quantity: 150, DaysSinceLastSale: 110},
		{SKU: "ANCIENT", Quantity: 500, DaysSinceLastSale: 400},
	})
	require.Len(t, risks, 4)

	assert.Equal(t, "Monitor", risks[0].RecommendedAction)
	assert.Equal(t, "Bundle with fast mover", risks[1].RecommendedAction)
	assert.Equal(t, "Markdown 20%", risks[2].RecommendedAction)
	assert.InDelta(t, 110.0/120.0+0.15, risks[2].ProbabilityOfDeadStock, 1e-9)
	assert.InDelta(t, 0.95, risks[3].ProbabilityOfDeadStock, 1e-9)
}

func TestDeadStockOracleRejectsEmptyInventory(t *testing.T) {
	_, err := NewDeadStockOracle().Execute(context.Background(), []byte(`{"inventoryData":[]}`))
	assert.Error(t, err)
}

func TestDraftGST(t *testing.T) {
	draft := DraftGST("2026-07", 100000, 40000)

	assert.InDelta(t, 18000.0, draft.OutputTax, 1e-9)
	assert.InDelta(t, 7200.0, draft.InputTaxCredit, 1e-9)
	assert.InDelta(t, 10800.0, draft.NetPayable, 1e-9)
	assert.Equal(t, "draft", draft.Status)
}

func TestDraftGSTClampsNegativePayable(t *testing.T) {
	draft := DraftGST("2026-07", 1000, 5000)
	assert.Zero(t, draft.NetPayable)
}

func TestWhatsAppAlertExecute(t *testing.T) {
	tool := NewWhatsAppAlert(zap.NewNop())

	out, err := tool.Execute(context.Background(),
		[]byte(`{"message":"GST deadline in 3 days","priority":"high"}`))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, true, result["success"])
	assert.Equal(t, "queued", result["status"])
}

func TestPDFReportExecute(t *testing.T) {
	out, err := NewPDFReport().Execute(context.Background(),
		[]byte(`{"summary":"Q2 financials","metrics":{"revenue":100,"margin":0.4}}`))
	require.NoError(t, err)

	var result struct {
		Success     bool   `json:"success"`
		DownloadURL string `json:"downloadUrl"`
		MetricCount int    `json:"metricCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Contains(t, result.DownloadURL, "/reports/")
	assert.Equal(t, 2, result.MetricCount)
}
