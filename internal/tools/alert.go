package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/registry"
)

// WhatsAppAlert sends a high-priority alert through the outbound messaging
// service. The tool is in the interrupt set: the engine never executes it
// without an explicit operator approval.
type WhatsAppAlert struct {
	logger *zap.Logger
}

func NewWhatsAppAlert(logger *zap.Logger) *WhatsAppAlert {
	return &WhatsAppAlert{logger: logger}
}

func (t *WhatsAppAlert) Name() string { return "send_whatsapp_alert" }
func (t *WhatsAppAlert) Description() string {
	return "Sends high-priority alert (Risk Monitor). Human-in-the-loop required."
}

func (t *WhatsAppAlert) Schema() registry.Schema {
	return registry.Schema{
		{Name: "message", Type: registry.TypeString, Description: "The alert message to send", Required: true},
		{Name: "priority", Type: registry.TypeString, Description: "Priority level of the alert", Required: true,
			Enum: []string{"low", "medium", "high"}},
	}
}

func (t *WhatsAppAlert) Execute(_ context.Context, args []byte) (string, error) {
	var params struct {
		Message  string `json:"message"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Message == "" {
		return "", fmt.Errorf("message is required")
	}

	// TODO: integrate a real WhatsApp gateway (Twilio or 360dialog).
	t.logger.Info("whatsapp alert queued",
		zap.String("priority", params.Priority),
		zap.String("message", params.Message),
	)

	out, err := json.Marshal(map[string]any{
		"success": true,
		"status":  "queued",
		"message": "Alert sent via WhatsApp routing service.",
	})
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}
