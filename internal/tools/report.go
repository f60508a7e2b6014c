package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/user/finagent/internal/registry"
)

// PDFReport generates a financial report artifact. Rendering is delegated to
// the report service; this tool only produces the placeholder link the model
// hands back to the user.
type PDFReport struct{}

func NewPDFReport() *PDFReport { return &PDFReport{} }

func (t *PDFReport) Name() string { return "generate_pdf_report" }
func (t *PDFReport) Description() string {
	return "Generates a PDF financial report with summary and metrics."
}

func (t *PDFReport) Schema() registry.Schema {
	return registry.Schema{
		{Name: "summary", Type: registry.TypeString, Description: "Executive summary for the report", Required: true},
		{Name: "metrics", Type: registry.TypeObject, Description: "Key metrics to include in the report table", Required: true},
	}
}

func (t *PDFReport) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		Summary string         `json:"summary"`
		Metrics map[string]any `json:"metrics"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Summary == "" {
		return "", fmt.Errorf("summary is required")
	}

	out, err := json.Marshal(map[string]any{
		"success":     true,
		"message":     "PDF Report generated successfully. Ready for download.",
		"downloadUrl": fmt.Sprintf("/reports/%s.pdf", uuid.New().String()),
		"metricCount": len(params.Metrics),
	})
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}
