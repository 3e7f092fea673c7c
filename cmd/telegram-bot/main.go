package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
)

const (
	defaultServiceURL = "http://localhost:8080"
	defaultLimit      = 5
	maxLimit          = 50
)

type BotConfig struct {
	Token          string
	ServiceURL     string
	UpdateTimeout  int
	AllowedUserIDs []int64 // empty: anyone may use the bot
}

func main() {
	_ = godotenv.Load()

	var token, serviceURL, allowedUsers string
	flag.StringVar(&token, "token", "", "Telegram bot token (required, or set TELEGRAM_BOT_TOKEN env var)")
	flag.StringVar(&serviceURL, "service-url", defaultServiceURL, "Edge finder service URL (or EDGEFINDER_URL env var)")
	flag.StringVar(&allowedUsers, "allowed-users", "", "Comma-separated list of allowed user IDs (optional)")
	flag.Parse()

	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if token == "" {
		log.Fatal("Telegram bot token is required. Set -token flag or TELEGRAM_BOT_TOKEN env var")
	}
	if serviceURL == defaultServiceURL {
		if envURL := os.Getenv("EDGEFINDER_URL"); envURL != "" {
			serviceURL = envURL
		}
	}

	cfg := BotConfig{
		Token:          token,
		ServiceURL:     serviceURL,
		UpdateTimeout:  60,
		AllowedUserIDs: parseUserIDs(allowedUsers),
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	slog.Info("Telegram bot authorized", "account", bot.Self.UserName, "service_url", cfg.ServiceURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newEdgeClient(cfg.ServiceURL, 3*time.Minute)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.UpdateTimeout
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			slog.Info("Telegram bot stopped")
			return
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			if len(cfg.AllowedUserIDs) > 0 && !slices.Contains(cfg.AllowedUserIDs, update.Message.From.ID) {
				send(bot, update.Message.Chat.ID, "Access denied. You are not authorized to use this bot.", false)
				continue
			}
			handleMessage(ctx, bot, client, update.Message)
		}
	}
}

func parseUserIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseCommand splits "/alerts 10" or "alerts 10" into a command and a limit.
func parseCommand(text string) (string, int) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(parts) == 0 {
		return "", 0
	}
	cmd := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	limit := defaultLimit
	if len(parts) > 1 {
		if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}
	return cmd, limit
}

func handleMessage(ctx context.Context, bot *tgbotapi.BotAPI, client *edgeClient, message *tgbotapi.Message) {
	cmd, limit := parseCommand(message.Text)
	if cmd == "" {
		return
	}
	chatID := message.Chat.ID

	var (
		reply string
		err   error
	)
	switch cmd {
	case "start", "help":
		send(bot, chatID, helpText, true)
		return
	case "alerts":
		_, _ = bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
		reply, err = client.recentAlerts(ctx, limit)
	case "report":
		_, _ = bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
		reply, err = client.latestReport(ctx, limit)
	case "run":
		_, _ = bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
		reply, err = client.triggerRun(ctx, limit)
	case "status":
		reply, err = client.status(ctx)
	default:
		send(bot, chatID, "Unknown command. Use /help to see available commands.", false)
		return
	}
	if err != nil {
		slog.Warn("Edge finder request failed", "command", cmd, "error", err)
		reply = fmt.Sprintf("Error: %v", err)
	}
	send(bot, chatID, reply, false)
}

func send(bot *tgbotapi.BotAPI, chatID int64, text string, markdown bool) {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		if _, err := bot.Send(msg); err != nil {
			slog.Warn("Failed to send Telegram message", "chat_id", chatID, "error", err)
		}
	}
}

const helpText = `*Edge Finder Bot*

/report [limit] - value sides from the latest run
/alerts [limit] - recent alerts from the archive
/run [limit] - evaluate the slate now
/status - service status
/help - this message

Limit must be between 1 and 50. Default is 5.`
