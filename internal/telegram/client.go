// Package telegram wraps the Bot API transport. The rest of the process only
// sees sender identity, chat identity and text; no platform payloads leak out.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/teledeck/internal/logging"
)

var log = logging.ForComponent(logging.CompTelegram)

// pollTimeoutSecs is the long-poll timeout for getUpdates.
const pollTimeoutSecs = 30

// Message is one inbound text event, reduced to the fields the bot needs.
type Message struct {
	ChatID   int64
	UserID   int64
	Username string

	// Command is the bot command without the leading slash ("start",
	// "reset", ...), empty for plain text.
	Command string

	// Text is the message text, or the command arguments for commands.
	Text string
}

// Client is the live Bot API transport. Outbound calls share a rate limiter
// kept under Telegram's global send ceiling.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// New authenticates against the Bot API.
func New(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	return &Client{
		api: api,
		// Telegram allows ~30 messages/second overall; stay under it.
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}, nil
}

// Username returns the bot account name.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendMessage sends text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

// SendTyping shows the "typing..." presence indicator in a chat.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram: chat action for %d: %w", chatID, err)
	}
	return nil
}

// Updates long-polls the Bot API and delivers inbound text messages until ctx
// ends, at which point the returned channel is closed.
func (c *Client) Updates(ctx context.Context) <-chan Message {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSecs
	raw := c.api.GetUpdatesChan(u)

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.api.StopReceivingUpdates()
				return
			case upd, ok := <-raw:
				if !ok {
					return
				}
				msg, ok := fromUpdate(upd)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					c.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// fromUpdate reduces a raw update to a Message. Non-message updates (edits,
// joins, callback queries) are dropped.
func fromUpdate(upd tgbotapi.Update) (Message, bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return Message{}, false
	}

	msg := Message{
		ChatID:   m.Chat.ID,
		UserID:   m.From.ID,
		Username: m.From.UserName,
	}
	if m.IsCommand() {
		msg.Command = m.Command()
		msg.Text = m.CommandArguments()
	} else {
		msg.Text = m.Text
	}
	return msg, true
}

// logSendFailure is a shared helper for callers that swallow send errors.
func logSendFailure(op string, chatID int64, err error) {
	log.Warn("send_failed",
		slog.String("op", op),
		slog.Int64("chat_id", chatID),
		slog.String("error", err.Error()))
}
