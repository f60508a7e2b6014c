package approvals

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/user/finagent/internal/types"
)

const maxTelegramMessage = 4096

// TurnResolver resumes suspended threads. Satisfied by gateway.Service.
type TurnResolver interface {
	ResolveApproval(ctx context.Context, key types.ThreadKey, approve bool) (*types.TurnResult, error)
}

// ThreadReader lists stored threads so the operator can see what is waiting.
type ThreadReader interface {
	List(ctx context.Context) ([]*types.ThreadState, error)
}

// Bridge is the operator approval channel over Telegram. When a turn
// suspends on a gated tool the bridge notifies the operator chat; the
// operator resolves it with /approve or /decline.
type Bridge struct {
	bot     *tgbotapi.BotAPI
	turns   TurnResolver
	threads ThreadReader
	chatID  int64
	logger  *zap.Logger
}

// New creates a bridge bound to one operator chat. Messages from any other
// chat are ignored.
func New(token string, chatID int64, turns TurnResolver, threads ThreadReader, logger *zap.Logger) (*Bridge, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Bridge{
		bot:     bot,
		turns:   turns,
		threads: threads,
		chatID:  chatID,
		logger:  logger,
	}, nil
}

// Notify tells the operator a thread suspended on gated tools. Called by the
// gateway whenever a turn parks at approval.
func (b *Bridge) Notify(key types.ThreadKey, approval *types.Approval) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Approval needed on thread %s (user %s)\n", key, approval.UserID)
	fmt.Fprintf(&sb, "Gated tools: %s\n\n", strings.Join(approval.Gated, ", "))
	for _, call := range approval.Calls {
		fmt.Fprintf(&sb, "- %s %s\n", call.Name, string(call.Arguments))
	}
	fmt.Fprintf(&sb, "\nReply /approve %s or /decline %s", key, key)
	b.send(sb.String())
}

// Start begins long-polling for operator commands. Blocks until ctx ends.
func (b *Bridge) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				continue
			}
			b.handleCommand(ctx, update.Message)
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return
		}
	}
}

func (b *Bridge) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.send("Commands: /approve <thread>, /decline <thread>, /pending")
		return
	}

	switch msg.Command() {
	case "approve":
		b.resolve(ctx, msg.CommandArguments(), true)
	case "decline":
		b.resolve(ctx, msg.CommandArguments(), false)
	case "pending":
		b.listPending(ctx)
	default:
		b.send("Unknown command. Available: /approve <thread>, /decline <thread>, /pending")
	}
}

func (b *Bridge) resolve(ctx context.Context, arg string, approve bool) {
	key := types.ThreadKey(strings.TrimSpace(arg))
	if key == "" {
		b.send("Thread key required, e.g. /approve user-42:main")
		return
	}

	result, err := b.turns.ResolveApproval(ctx, key, approve)
	if err != nil {
		b.logger.Warn("approval resolution failed",
			zap.String("thread", string(key)),
			zap.Bool("approve", approve),
			zap.Error(err),
		)
		b.send(fmt.Sprintf("Could not resolve %s: %v", key, err))
		return
	}

	verdict := "declined"
	if approve {
		verdict = "approved"
	}
	reply := fmt.Sprintf("Thread %s %s.", key, verdict)
	if result.Final != nil {
		reply += "\n\nAssistant: " + result.Final.Content
	} else if len(result.PendingApproval) > 0 {
		reply += "\n\nThe thread suspended again on another gated batch."
	}
	b.send(reply)
}

func (b *Bridge) listPending(ctx context.Context) {
	states, err := b.threads.List(ctx)
	if err != nil {
		b.send(fmt.Sprintf("Could not list threads: %v", err))
		return
	}

	var sb strings.Builder
	for _, state := range states {
		if state.Pending == nil {
			continue
		}
		fmt.Fprintf(&sb, "%s (user %s): %s\n",
			state.Key, state.Pending.UserID, strings.Join(state.Pending.Gated, ", "))
	}
	if sb.Len() == 0 {
		b.send("Nothing pending.")
		return
	}
	b.send("Pending approvals:\n" + sb.String())
}

func (b *Bridge) send(text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(b.chatID, part)
		if _, err := b.bot.Send(msg); err != nil {
			b.logger.Warn("telegram send failed", zap.Error(err))
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > maxTelegramMessage {
		parts = append(parts, text[:maxTelegramMessage])
		text = text[maxTelegramMessage:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
