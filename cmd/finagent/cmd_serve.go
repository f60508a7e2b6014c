package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/finagent/internal/approvals"
	"github.com/user/finagent/internal/checkpoint"
	"github.com/user/finagent/internal/engine"
	"github.com/user/finagent/internal/gateway"
	"github.com/user/finagent/internal/ledger"
	"github.com/user/finagent/internal/memory"
	"github.com/user/finagent/internal/orchestrator"
	"github.com/user/finagent/internal/registry"
	"github.com/user/finagent/internal/scheduler"
	"github.com/user/finagent/internal/server"
	"github.com/user/finagent/internal/tools"
	"github.com/user/finagent/internal/types"
	"github.com/user/finagent/pkg/llm"
	"github.com/user/finagent/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the finagent daemon",
	RunE:  runServe,
}

// auditLog is what serve needs from a ledger backend: recording plus the
// read side for the compliance API.
type auditLog interface {
	types.Ledger
	List(ctx context.Context, userID string) ([]*types.AuditEntry, error)
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "finagent.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores. Postgres replaces the file backends for memory and the
	// ledger when configured; checkpoints stay on local disk.
	checkpoints := checkpoint.NewStore(cfg.DataDir)
	classifier := ledger.NewClassifier(cfg.Ledger.FrozenMarkers)

	var memStore types.MemoryStore
	var auditLedger auditLog
	if cfg.Postgres.Enabled {
		pgMem, err := memory.NewPostgresStore(cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("open memory store: %w", err)
		}
		defer pgMem.Close()
		pgLedger, err := ledger.NewPostgresLedger(cfg.Postgres.URL, classifier)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer pgLedger.Close()
		memStore, auditLedger = pgMem, pgLedger
	} else {
		memStore = memory.NewFileStore(cfg.DataDir)
		auditLedger = ledger.NewFileLedger(cfg.DataDir, classifier)
	}

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		Timeout:     cfg.LLM.TimeoutSeconds,
	})

	// Tool registry
	reg := registry.New()
	for _, t := range []registry.Tool{
		tools.NewUnitEconomics(),
		tools.NewTariffForecaster(),
		tools.NewDeadStockOracle(),
		tools.NewPDFReport(),
		tools.NewWhatsAppAlert(logger),
		tools.NewGSTDraft(),
	} {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	// Orchestrator and engine
	prompt, err := orchestrator.NewPromptBuilder(cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.ReserveTokens)
	if err != nil {
		return fmt.Errorf("create prompt builder: %w", err)
	}
	node := orchestrator.NewNode(provider, memStore, auditLedger, prompt, reg.AsLLMTools(), cfg.LLM.Model, logger)
	executor := engine.NewExecutor(reg, auditLedger,
		time.Duration(cfg.Limits.ToolTimeoutSeconds)*time.Second, logger)
	eng := engine.New(node, executor, checkpoints,
		cfg.Ledger.InterruptTools, cfg.Limits.MaxTurnIterations, logger)

	// Gateway
	svc := gateway.NewService(eng, cfg.Limits.MaxConcurrent, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	logger.Info("finagent started",
		zap.String("data_dir", cfg.DataDir),
		zap.String("log_level", cfg.LogLevel),
		zap.Int64("max_concurrent", cfg.Limits.MaxConcurrent),
		zap.Int("max_turn_iterations", cfg.Limits.MaxTurnIterations),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Strings("tools", reg.Names()),
		zap.Bool("postgres", cfg.Postgres.Enabled),
		zap.String("pid_file", pidPath),
	)

	// Operator approval channel
	if cfg.Telegram.Enabled {
		bridge, err := approvals.New(cfg.Telegram.Token, cfg.Telegram.OperatorChatID, svc, checkpoints, logger)
		if err != nil {
			return fmt.Errorf("create approval bridge: %w", err)
		}
		eng.SetApprovalNotifier(bridge.Notify)
		go bridge.Start(ctx)
		logger.Info("telegram approval bridge started",
			zap.Int64("operator_chat_id", cfg.Telegram.OperatorChatID))
	} else {
		logger.Warn("telegram approval bridge disabled; approvals go through POST /api/approval only")
	}

	// Scheduler
	taskStore := scheduler.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))
	if err := taskStore.Seed(); err != nil {
		return fmt.Errorf("seed task store: %w", err)
	}
	sched := scheduler.New(taskStore, func(userID, threadID, taskPrompt string) {
		key := types.NewThreadKey(userID, threadID)
		result, err := svc.SubmitTurn(ctx, key, userID, taskPrompt)
		if err != nil {
			logger.Error("cron task failed", zap.String("thread", string(key)), zap.Error(err))
			return
		}
		if len(result.PendingApproval) > 0 {
			logger.Info("cron task suspended for approval", zap.String("thread", string(key)))
		}
	}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	logger.Info("scheduler started")

	// HTTP server
	if cfg.HTTP.Enabled {
		srv := server.New(svc, checkpoints, auditLedger, logger)
		httpServer := &http.Server{Addr: cfg.HTTP.Listen, Handler: srv}
		go func() {
			logger.Info("http server started", zap.String("listen", cfg.HTTP.Listen))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	svc.WaitIdle(10 * time.Second)
	return nil
}
