package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/user/finagent/internal/registry"
)

// Fixed monthly cost assumed by the break-even estimate.
const breakEvenFixedCost = 10000

// UnitEconomics calculates per-unit profitability from price and cost inputs.
type UnitEconomics struct{}

func NewUnitEconomics() *UnitEconomics { return &UnitEconomics{} }

func (t *UnitEconomics) Name() string { return "unit_economics_calculator" }
func (t *UnitEconomics) Description() string {
	return "Calculates net revenue, gross margin, and contribution margin."
}

func (t *UnitEconomics) Schema() registry.Schema {
	return registry.Schema{
		{Name: "price", Type: registry.TypeNumber, Description: "Selling price of the product", Required: true},
		{Name: "cogs", Type: registry.TypeNumber, Description: "Cost of goods sold", Required: true},
		{Name: "shipping", Type: registry.TypeNumber, Description: "Shipping cost per unit", Required: true},
		{Name: "returnsRate", Type: registry.TypeNumber, Description: "Expected returns rate (0 to 1)", Required: true},
	}
}

// UnitEconomicsResult is the calculator output.
type UnitEconomicsResult struct {
	NetRevenue         float64 `json:"netRevenue"`
	GrossMargin        float64 `json:"grossMargin"`
	ContributionMargin float64 `json:"contributionMargin"`
	BreakEvenUnits     int     `json:"breakEvenUnits"`
}

func (t *UnitEconomics) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		Price       float64 `json:"price"`
		COGS        float64 `json:"cogs"`
		Shipping    float64 `json:"shipping"`
		ReturnsRate float64 `json:"returnsRate"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.ReturnsRate < 0 || params.ReturnsRate > 1 {
		return "", fmt.Errorf("returnsRate must be between 0 and 1")
	}

	result := Calculate(params.Price, params.COGS, params.Shipping, params.ReturnsRate)
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}

// Calculate computes unit economics for one product.
func Calculate(price, cogs, shipping, returnsRate float64) UnitEconomicsResult {
	netRevenue := price * (1 - returnsRate)
	grossMargin := netRevenue - cogs - shipping

	var contribution float64
	if netRevenue != 0 {
		contribution = grossMargin / netRevenue
	}

	var breakEven int
	if grossMargin > 0 {
		breakEven = int(math.Ceil(breakEvenFixedCost / grossMargin))
	}

	return UnitEconomicsResult{
		NetRevenue:         netRevenue,
		GrossMargin:        grossMargin,
		ContributionMargin: contribution,
		BreakEvenUnits:     breakEven,
	}
}
