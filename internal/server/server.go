package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/finagent/internal/engine"
	"github.com/user/finagent/internal/orchestrator"
	"github.com/user/finagent/internal/tally"
	"github.com/user/finagent/internal/tools"
	"github.com/user/finagent/internal/types"
)

const maxBodyBytes = 10 << 20

// TurnService is the chat entry point the server talks to. Satisfied by
// gateway.Service; tests swap in a stub.
type TurnService interface {
	SubmitTurn(ctx context.Context, key types.ThreadKey, userID, text string) (*types.TurnResult, error)
	ResolveApproval(ctx context.Context, key types.ThreadKey, approve bool) (*types.TurnResult, error)
}

// ThreadReader exposes stored threads for the debug API.
type ThreadReader interface {
	Load(ctx context.Context, key types.ThreadKey) (*types.ThreadState, error)
	List(ctx context.Context) ([]*types.ThreadState, error)
}

// LedgerReader exposes audit entries for the compliance API.
type LedgerReader interface {
	List(ctx context.Context, userID string) ([]*types.AuditEntry, error)
}

// Server is the HTTP surface: chat, approvals, audit, Tally import, and the
// standalone calculator endpoints.
type Server struct {
	turns   TurnService
	threads ThreadReader
	ledger  LedgerReader
	logger  *zap.Logger
	mux     *http.ServeMux
}

func New(turns TurnService, threads ThreadReader, ledger LedgerReader, logger *zap.Logger) *Server {
	s := &Server{
		turns:   turns,
		threads: threads,
		ledger:  ledger,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/approval", s.handleApproval)
	s.mux.HandleFunc("GET /api/threads", s.handleThreads)
	s.mux.HandleFunc("GET /api/threads/{key}/messages", s.handleThreadMessages)
	s.mux.HandleFunc("GET /api/ledger/{user}", s.handleLedger)
	s.mux.HandleFunc("POST /api/tally/import", s.handleTallyImport)
	s.mux.HandleFunc("POST /api/calculator/unit-economics", s.handleUnitEconomics)
	s.mux.HandleFunc("POST /api/forecaster/tariff", s.handleTariff)
	s.mux.HandleFunc("POST /api/oracle/dead-stock", s.handleDeadStock)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// chatResponse reports where the turn ended: a final reply, or a batch of
// tool calls suspended for approval.
type chatResponse struct {
	State           string           `json:"state"`
	Reply           string           `json:"reply,omitempty"`
	Confidence      int              `json:"confidence,omitempty"`
	Issues          []string         `json:"issues,omitempty"`
	PendingApproval []types.ToolCall `json:"pending_approval,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "main"
	}

	key := types.NewThreadKey(req.UserID, req.ThreadID)
	result, err := s.turns.SubmitTurn(r.Context(), key, req.UserID, req.Message)
	if err != nil {
		s.writeTurnError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(result))
}

type approvalRequest struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	Approve  bool   `json:"approve"`
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = "main"
	}

	key := types.NewThreadKey(req.UserID, req.ThreadID)
	result, err := s.turns.ResolveApproval(r.Context(), key, req.Approve)
	if err != nil {
		s.writeTurnError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(result))
}

func toChatResponse(result *types.TurnResult) chatResponse {
	if len(result.PendingApproval) > 0 {
		return chatResponse{
			State:           engine.StateAwaitApproval,
			PendingApproval: result.PendingApproval,
		}
	}

	resp := chatResponse{State: engine.StateDone}
	if result.Final != nil {
		report, _ := orchestrator.ParseReport(result.Final.Content)
		resp.Reply = orchestrator.StripHeader(result.Final.Content)
		resp.Confidence = report.Confidence
		resp.Issues = report.Issues
	}
	return resp
}

func (s *Server) writeTurnError(w http.ResponseWriter, key types.ThreadKey, err error) {
	switch {
	case errors.Is(err, engine.ErrApprovalPending), errors.Is(err, engine.ErrNoApprovalPending):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("turn failed", zap.String("thread", string(key)), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "turn failed",
			"message": "Sorry, something went wrong processing your message. Your conversation is unchanged; please try again.",
		})
	}
}

type threadSummary struct {
	Key      types.ThreadKey `json:"key"`
	State    string          `json:"state"`
	Messages int             `json:"messages"`
	Updated  string          `json:"updated_at"`
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	states, err := s.threads.List(r.Context())
	if err != nil {
		s.logger.Error("list threads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]threadSummary, 0, len(states))
	for _, state := range states {
		out = append(out, threadSummary{
			Key:      state.Key,
			State:    engine.Status(state),
			Messages: len(state.Messages),
			Updated:  state.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": out})
}

func (s *Server) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	key := types.ThreadKey(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "thread key required")
		return
	}

	state, err := s.threads.Load(r.Context(), key)
	if err != nil {
		s.logger.Error("load thread failed", zap.String("thread", string(key)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      state.Key,
		"state":    engine.Status(state),
		"messages": state.Messages,
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user required")
		return
	}

	entries, err := s.ledger.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list ledger failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleTallyImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	imp, err := tally.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    imp,
		"summary": imp.Summary(),
	})
}

func (s *Server) handleUnitEconomics(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price       float64 `json:"price"`
		COGS        float64 `json:"cogs"`
		Shipping    float64 `json:"shipping"`
		ReturnsRate float64 `json:"returnsRate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ReturnsRate < 0 || req.ReturnsRate > 1 {
		writeError(w, http.StatusBadRequest, "returnsRate must be between 0 and 1")
		return
	}
	writeJSON(w, http.StatusOK, tools.Calculate(req.Price, req.COGS, req.Shipping, req.ReturnsRate))
}

func (s *Server) handleTariff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CountryCode  string  `json:"countryCode"`
		HSCode       string  `json:"hsCode"`
		ProductValue float64 `json:"productValue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProductValue < 0 {
		writeError(w, http.StatusBadRequest, "productValue must be non-negative")
		return
	}
	writeJSON(w, http.StatusOK, tools.Forecast(req.CountryCode, req.HSCode, req.ProductValue))
}

func (s *Server) handleDeadStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InventoryData []tools.InventoryItem `json:"inventoryData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.InventoryData) == 0 {
		writeError(w, http.StatusBadRequest, "inventoryData must not be empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": tools.Analyze(req.InventoryData)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
