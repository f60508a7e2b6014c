package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/finagent/internal/registry"
)

// Placeholder duty rates until a real tariff data source is wired in.
const (
	baseTariffRate     = 0.10
	additionalDutyRate = 0.05
)

// TariffForecaster estimates duty impact for a product and import country.
type TariffForecaster struct{}

func NewTariffForecaster() *TariffForecaster { return &TariffForecaster{} }

func (t *TariffForecaster) Name() string { return "tariff_forecaster" }
func (t *TariffForecaster) Description() string {
	return "Forecasts duty and tariff impact for a specific product and country."
}

func (t *TariffForecaster) Schema() registry.Schema {
	return registry.Schema{
		{Name: "countryCode", Type: registry.TypeString, Description: "ISO country code of the importer", Required: true},
		{Name: "hsCode", Type: registry.TypeString, Description: "Harmonized System code of the product", Required: true},
		{Name: "productValue", Type: registry.TypeNumber, Description: "Value of the product in USD", Required: true},
	}
}

// TariffForecast is the forecaster output.
type TariffForecast struct {
	CountryCode   string  `json:"countryCode"`
	HSCode        string  `json:"hsCode"`
	TotalDuty     float64 `json:"totalDuty"`
	EffectiveRate float64 `json:"effectiveRate"`
	Currency      string  `json:"currency"`
}

func (t *TariffForecaster) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		CountryCode  string  `json:"countryCode"`
		HSCode       string  `json:"hsCode"`
		ProductValue float64 `json:"productValue"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.ProductValue < 0 {
		return "", fmt.Errorf("productValue must be non-negative")
	}

	forecast := Forecast(params.CountryCode, params.HSCode, params.ProductValue)
	out, err := json.Marshal(forecast)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}

// Forecast estimates the landed duty for a product value.
func Forecast(countryCode, hsCode string, productValue float64) TariffForecast {
	rate := baseTariffRate + additionalDutyRate
	return TariffForecast{
		CountryCode:   countryCode,
		HSCode:        hsCode,
		TotalDuty:     productValue * rate,
		EffectiveRate: rate,
		Currency:      "USD",
	}
}
