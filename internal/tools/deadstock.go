package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/finagent/internal/registry"
)

// DeadStockOracle scores inventory items by their risk of becoming dead
// stock. The heuristic is deterministic so repeated runs over the same
// inventory produce the same analysis.
type DeadStockOracle struct{}

func NewDeadStockOracle() *DeadStockOracle { return &DeadStockOracle{} }

func (t *DeadStockOracle) Name() string { return "dead_stock_oracle" }
func (t *DeadStockOracle) Description() string {
	return "Predicts dead stock risk (Risk Monitor)."
}

func (t *DeadStockOracle) Schema() registry.Schema {
	return registry.Schema{
		{Name: "inventoryData", Type: registry.TypeArray, Description: "List of inventory items with SKU and other metrics", Required: true},
	}
}

// InventoryItem is one item in the oracle's input.
type InventoryItem struct {
	SKU               string  `json:"sku"`
	Quantity          float64 `json:"quantity"`
	DaysSinceLastSale float64 `json:"daysSinceLastSale"`
}

// DeadStockRisk is the per-item analysis.
type DeadStockRisk struct {
	SKU                    string  `json:"sku"`
	ProbabilityOfDeadStock float64 `json:"probabilityOfDeadStock"`
	DaysSinceLastSale      int     `json:"daysSinceLastSale"`
	RecommendedAction      string  `json:"recommendedAction"`
}

func (t *DeadStockOracle) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		InventoryData []InventoryItem `json:"inventoryData"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if len(params.InventoryData) == 0 {
		return "", fmt.Errorf("inventoryData must not be empty")
	}

	analysis := Analyze(params.InventoryData)
	out, err := json.Marshal(map[string]any{"analysis": analysis})
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}

// Analyze scores each item. Risk grows with days since last sale and with
// large quantities sitting on hand; the score is capped at 0.95.
func Analyze(items []InventoryItem) []DeadStockRisk {
	out := make([]DeadStockRisk, 0, len(items))
	for _, item := range items {
		risk := item.DaysSinceLastSale / 120.0
		if item.Quantity > 100 {
			risk += 0.15
		}
		if risk > 0.95 {
			risk = 0.95
		}
		if risk < 0 {
			risk = 0
		}

		action := "Monitor"
		switch {
		case risk >= 0.7:
			action = "Markdown 20%"
		case risk >= 0.4:
			action = "Bundle with fast mover"
		}

		out = append(out, DeadStockRisk{
			SKU:                    item.SKU,
			ProbabilityOfDeadStock: risk,
			DaysSinceLastSale:      int(item.DaysSinceLastSale),
			RecommendedAction:      action,
		})
	}
	return out
}
