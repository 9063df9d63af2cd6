// Package telegram provides a client for sending quake alerts and ops notices via Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/models"
)

// captionLimit is Telegram's maximum photo caption length in characters.
const captionLimit = 1024

type Config struct {
	BotToken   string
	ChatID     string
	OpsChatID  string // defaults to ChatID
	LinkText   string
	MaxRetries int
	RetryDelay time.Duration
	// APIEndpoint overrides tgbotapi.APIEndpoint (format with token and method).
	APIEndpoint string
}

// StatusReporter answers the read-only bot commands.
type StatusReporter interface {
	StatusText(ctx context.Context) string
	LastQuakeText(ctx context.Context) string
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	opsChatID      int64
	linkText       string
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(config Config) (*Client, error) {
	chatID, err := strconv.ParseInt(config.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	opsChatID := chatID
	if config.OpsChatID != "" {
		if opsChatID, err = strconv.ParseInt(config.OpsChatID, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid ops chat ID: %w", err)
		}
	}

	endpoint := config.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(config.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.LinkText == "" {
		config.LinkText = "👉 Read more"
	}

	return &Client{
		bot:            bot,
		chatID:         chatID,
		opsChatID:      opsChatID,
		linkText:       config.LinkText,
		maxRetries:     config.MaxRetries,
		retryDelayBase: config.RetryDelay,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, reporter StatusReporter) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message, reporter)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message, reporter StatusReporter) {
	text, ok := commandReply(ctx, msg.Command(), reporter)
	if !ok {
		return
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
		logger.Warn("Failed to answer /%s: %v", msg.Command(), err)
	}
}

func commandReply(ctx context.Context, command string, reporter StatusReporter) (string, bool) {
	switch command {
	case "ping":
		return "Pong", true
	case "status":
		if reporter == nil {
			return "Status unavailable.", true
		}
		return reporter.StatusText(ctx), true
	case "lastquake":
		if reporter == nil {
			return "No quake history found yet.", true
		}
		return reporter.LastQuakeText(ctx), true
	}
	return "", false
}

// send delivers c with linear-backoff retry. Waits between attempts stop
// early when ctx is done.
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gave up after %d attempts: %w", i, errors.Join(lastErr, ctx.Err()))
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// sendMarkdownV2 sends a MarkdownV2 message to the ops chat.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.opsChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return c.send(ctx, msg)
}

// SendQuakePhoto posts the rendered map with caption to the alert chat. The
// caption is plain text; permalink, when set, is appended as a link.
func (c *Client) SendQuakePhoto(ctx context.Context, imagePath, caption, permalink string) error {
	photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FilePath(imagePath))
	photo.Caption = c.formatCaption(caption, permalink)
	photo.ParseMode = tgbotapi.ModeMarkdownV2
	if err := c.send(ctx, photo); err != nil {
		return fmt.Errorf("%w: telegram: %v", models.ErrChannelPost, err)
	}
	return nil
}

func (c *Client) formatCaption(caption, permalink string) string {
	link := ""
	if permalink != "" {
		link = fmt.Sprintf("\n\n[%s](%s)", escapeMarkdownV2(c.linkText), escapeMarkdownV2URL(permalink))
	}
	body := escapeMarkdownV2(caption)
	if n := captionLimit - len([]rune(link)); len([]rune(body)) > n {
		body = truncateEscaped(body, n)
	}
	return body + link
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Quake feed error*\n`%s`", escapeMarkdownV2Code(cycleErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Quake feed recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeMarkdownV2URL escapes the inside of an inline link target.
func escapeMarkdownV2URL(url string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
}

// escapeMarkdownV2Code escapes the inside of a code span.
func escapeMarkdownV2Code(text string) string {
	return strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(text)
}

// truncateEscaped cuts an escaped string to at most n runes (including the
// ellipsis) without leaving a dangling backslash.
func truncateEscaped(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	r = r[:n-1]
	trailing := 0
	for i := len(r) - 1; i >= 0 && r[i] == '\\'; i-- {
		trailing++
	}
	if trailing%2 == 1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
