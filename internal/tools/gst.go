package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/finagent/internal/registry"
)

// Standard GST rate applied to the draft when no per-line tax data is given.
const gstRate = 0.18

// GSTDraft prepares a GSTR-3B style filing draft. Drafts are regulatory
// output: the tool is interrupt-gated and its ledger entries are frozen
// pending manual release.
type GSTDraft struct{}

func NewGSTDraft() *GSTDraft { return &GSTDraft{} }

func (t *GSTDraft) Name() string { return "gst_draft_generator" }
func (t *GSTDraft) Description() string {
	return "Generates a GST filing draft for a return period. Human-in-the-loop required."
}

func (t *GSTDraft) Schema() registry.Schema {
	return registry.Schema{
		{Name: "period", Type: registry.TypeString, Description: "Return period, e.g. 2026-07", Required: true},
		{Name: "totalSales", Type: registry.TypeNumber, Description: "Total taxable sales for the period"},
		{Name: "totalPurchases", Type: registry.TypeNumber, Description: "Total taxable purchases for the period"},
	}
}

// GSTDraftResult is the generated filing draft.
type GSTDraftResult struct {
	Period         string  `json:"period"`
	OutputTax      float64 `json:"outputTax"`
	InputTaxCredit float64 `json:"inputTaxCredit"`
	NetPayable     float64 `json:"netPayable"`
	Status         string  `json:"status"`
}

func (t *GSTDraft) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		Period         string  `json:"period"`
		TotalSales     float64 `json:"totalSales"`
		TotalPurchases float64 `json:"totalPurchases"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Period == "" {
		return "", fmt.Errorf("period is required")
	}

	draft := DraftGST(params.Period, params.TotalSales, params.TotalPurchases)
	out, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}

// DraftGST computes draft liability at the standard rate.
func DraftGST(period string, totalSales, totalPurchases float64) GSTDraftResult {
	outputTax := totalSales * gstRate
	inputCredit := totalPurchases * gstRate
	net := outputTax - inputCredit
	if net < 0 {
		net = 0
	}
	return GSTDraftResult{
		Period:         period,
		OutputTax:      outputTax,
		InputTaxCredit: inputCredit,
		NetPayable:     net,
		Status:         "draft",
	}
}
