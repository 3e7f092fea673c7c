package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/Vodeneev/mlbedge/internal/pkg/config"
	"github.com/Vodeneev/mlbedge/internal/pkg/models"
)

// Min interval between two messages to the same chat; Telegram answers 429
// above roughly 30 messages a minute.
const defaultSendInterval = 2 * time.Second

var (
	ErrQueueFull       = errors.New("telegram message queue is full")
	ErrNotifierStopped = errors.New("notifier stopped")
)

type queuedMessage struct {
	alert    models.Alert
	text     string
	queuedAt time.Time
	result   chan error
}

// TelegramNotifier queues alerts and sends them from a single background
// worker, paced by a rate limiter. Notify waits for the send result until its
// context expires; a message already queued is still sent after that and
// Notify returns ErrDeliveryPending. Late failures are logged by the worker.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter

	queue     chan queuedMessage
	queueDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// NewTelegramNotifier connects to the Bot API and starts the sender.
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, cfg), nil
}

func newTelegramNotifier(bot *tgbotapi.BotAPI, cfg config.TelegramConfig) *TelegramNotifier {
	bot.Debug = false

	interval := cfg.SendInterval
	if interval <= 0 {
		interval = defaultSendInterval
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    cfg.ChatID,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		queue:     make(chan queuedMessage, size),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go n.messageSender()

	slog.Info("Telegram notifier initialized", "chat_id", cfg.ChatID, "bot", bot.Self.UserName, "send_interval", interval)
	return n
}

func (n *TelegramNotifier) Name() string { return "telegram" }

// QueueLen returns the number of messages waiting to be sent.
func (n *TelegramNotifier) QueueLen() int {
	if n == nil {
		return 0
	}
	return len(n.queue)
}

// Notify queues the alert without blocking on a full queue, then waits for
// the send result or ctx.
func (n *TelegramNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if n == nil || n.bot == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}

	msg := queuedMessage{
		alert:    alert,
		text:     formatAlert(alert),
		queuedAt: time.Now(),
		result:   make(chan error, 1),
	}

	select {
	case <-n.ctx.Done():
		return ErrNotifierStopped
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- msg:
	default:
		slog.Warn("Telegram message queue is full, dropping message", "matchup", alert.Matchup, "alert_id", alert.ID)
		return ErrQueueFull
	}

	select {
	case err := <-msg.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram send queued, not confirmed (%v): %w", ctx.Err(), ErrDeliveryPending)
	}
}

// messageSender drains the queue; on Stop it sends what is left and exits.
func (n *TelegramNotifier) messageSender() {
	defer close(n.queueDone)
	for {
		select {
		case <-n.ctx.Done():
			for {
				select {
				case msg := <-n.queue:
					n.send(msg, false)
				default:
					return
				}
			}
		case msg := <-n.queue:
			n.send(msg, true)
		}
	}
}

func (n *TelegramNotifier) send(msg queuedMessage, pace bool) {
	if pace {
		if err := n.limiter.Wait(n.ctx); err != nil {
			// stopping: fall through and send without pacing
			slog.Debug("Telegram send: pacing interrupted", "alert_id", msg.alert.ID)
		}
	}

	tgMsg := tgbotapi.NewMessage(n.chatID, msg.text)
	tgMsg.ParseMode = tgbotapi.ModeMarkdownV2

	sendStart := time.Now()
	_, err := n.bot.Send(tgMsg)
	if err != nil {
		slog.Error("Telegram send: failed", "error", err, "alert_id", msg.alert.ID, "matchup", msg.alert.Matchup)
	} else {
		slog.Info("Telegram send: success",
			"alert_id", msg.alert.ID,
			"matchup", msg.alert.Matchup,
			"send_duration", time.Since(sendStart),
			"delay_since_queued_sec", time.Since(msg.queuedAt).Seconds(),
			"queue_length", len(n.queue))
	}
	msg.result <- err
}

// Stop sends the remaining queued messages and stops the worker.
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.stopOnce.Do(n.cancel)
	<-n.queueDone
}

func (n *TelegramNotifier) Close() error {
	n.Stop()
	return nil
}

func formatAlert(a models.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚨 *%s*\n\n", escapeMarkdown(Subject(a))))
	b.WriteString(fmt.Sprintf("⚾ %s \\(%s\\)\n", escapeMarkdown(a.Team), escapeMarkdown(string(a.Side))))
	b.WriteString(fmt.Sprintf("📈 *Edge: %s%%*\n", escapeMarkdown(fmt.Sprintf("%.1f", a.Edge*100))))
	b.WriteString(fmt.Sprintf("💰 Fair: %s \\| Market: %s\n",
		escapeMarkdown(formatFair(a.FairPrice)), escapeMarkdown(formatMoneyline(a.MarketPrice))))
	if !a.CreatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("🕐 %s\n", escapeMarkdown(a.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
