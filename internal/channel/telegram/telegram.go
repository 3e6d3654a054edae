// Package telegram implements channel.Messenger over the Telegram Bot
// API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/agentops/telegram-mcp-server/internal/channel"
)

// Config holds settings for the Telegram messenger.
type Config struct {
	// Token is the bot token from @BotFather (required).
	Token string
	// ChatID is the operator chat all messages go to (required).
	ChatID int64
	// RateLimit caps outbound API calls per second.
	RateLimit float64
	// RateBurst is the burst capacity for rate limiting.
	RateBurst int
	// Logger is an optional slog.Logger instance.
	Logger *slog.Logger
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if c.ChatID == 0 {
		return fmt.Errorf("telegram: chat id is required")
	}
	if c.RateLimit <= 0 {
		// Telegram allows roughly 30 messages per second overall; one
		// chat tolerates far less.
		c.RateLimit = 25
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Messenger sends to and listens on a single Telegram chat.
type Messenger struct {
	cfg     Config
	bot     *bot.Bot
	events  chan channel.Event
	limiter *rate.Limiter
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a Messenger. The bot connection is established here; the
// update loop starts with Start.
func New(cfg Config) (*Messenger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Messenger{
		cfg:     cfg,
		events:  make(chan channel.Event, 100),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  cfg.Logger.With("channel", "telegram"),
	}

	b, err := bot.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, m.handleMessage)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, m.handleCallback)
	m.bot = b

	return m, nil
}

// Start runs the long-polling update loop until ctx is cancelled. The
// event stream is closed when the loop exits.
func (m *Messenger) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info("telegram listener started", "chat_id", m.cfg.ChatID)
	m.bot.Start(ctx)
	close(m.events)
	m.logger.Info("telegram listener stopped")
}

// Events exposes the inbound event stream.
func (m *Messenger) Events() <-chan channel.Event {
	return m.events
}

// Send delivers text to the operator chat. Controls become one inline
// keyboard button per row.
func (m *Messenger) Send(ctx context.Context, text string, controls ...channel.Control) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID: m.cfg.ChatID,
		Text:   text,
	}
	if len(controls) > 0 {
		rows := make([][]models.InlineKeyboardButton, 0, len(controls))
		for _, control := range controls {
			rows = append(rows, []models.InlineKeyboardButton{{
				Text:         control.Label,
				CallbackData: control.Token,
			}})
		}
		params.ReplyMarkup = models.InlineKeyboardMarkup{InlineKeyboard: rows}
	}

	if _, err := m.bot.SendMessage(ctx, params); err != nil {
		m.logger.Error("send failed", "error", err)
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

func (m *Messenger) handleMessage(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	m.deliver(ctx, channel.Event{
		Kind:     channel.EventText,
		ChatID:   update.Message.Chat.ID,
		SenderID: update.Message.From.ID,
		Text:     update.Message.Text,
	})
}

func (m *Messenger) handleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}

	// Stop the client-side spinner regardless of what the router does
	// with the event.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	}); err != nil {
		m.logger.Warn("answer callback failed", "error", err)
	}

	// Button presses on old messages may reference an inaccessible
	// message; in the single private chat the sender is the chat.
	chatID := cq.From.ID
	if cq.Message.Message != nil {
		chatID = cq.Message.Message.Chat.ID
	}

	m.deliver(ctx, channel.Event{
		Kind:     channel.EventCallback,
		ChatID:   chatID,
		SenderID: cq.From.ID,
		Token:    cq.Data,
	})
}

func (m *Messenger) deliver(ctx context.Context, event channel.Event) {
	select {
	case m.events <- event:
	case <-ctx.Done():
	default:
		m.logger.Warn("event channel full, dropping event", "chat_id", event.ChatID)
	}
}
