// Package bot dispatches inbound Telegram messages: authorization, commands,
// Claude invocation with a typing heartbeat, and chunked delivery.
package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/asheshgoplani/teledeck/internal/chunk"
	"github.com/asheshgoplani/teledeck/internal/config"
	"github.com/asheshgoplani/teledeck/internal/logging"
	"github.com/asheshgoplani/teledeck/internal/session"
	"github.com/asheshgoplani/teledeck/internal/telegram"
)

var log = logging.ForComponent(logging.CompBot)

const (
	msgNotAuthorized = "Not authorized."
	msgResetDone     = "Conversation reset. Next message starts a fresh session."
	msgChunkFailed   = "(Error sending part of the response)"

	msgStart = "Hello! I'm your remote Claude Code assistant.\n\n" +
		"I have full access to this machine — files, terminal, web search, " +
		"and all configured tools.\n\n" +
		"I remember our conversation until you reset it.\n\n" +
		"Commands:\n" +
		"/start - This message\n" +
		"/reset - Clear conversation memory\n" +
		"/help - Show help"

	msgHelp = "I'm Claude Code running on this machine, reachable over Telegram.\n\n" +
		"What I can do:\n" +
		"- Read/write/edit files\n" +
		"- Run terminal commands (git, python, npm, etc.)\n" +
		"- Search the web\n" +
		"- Multi-step coding tasks\n\n" +
		"I remember our conversation. Use /reset to start fresh."
)

// Messenger is the outbound transport surface the handler needs.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// Invoker produces reply text for a prompt. All failures arrive as text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, chatID int64) string
}

// Handler orchestrates one inbound message end to end.
type Handler struct {
	cfg       *config.Config
	messenger Messenger
	invoker   Invoker
	sessions  session.Store
	typing    *telegram.TypingManager
}

// New builds a Handler. sessions may be nil in stateless mode.
func New(cfg *config.Config, messenger Messenger, invoker Invoker, sessions session.Store) *Handler {
	return &Handler{
		cfg:       cfg,
		messenger: messenger,
		invoker:   invoker,
		sessions:  sessions,
		typing:    telegram.NewTypingManager(messenger, telegram.DefaultTypingInterval),
	}
}

// Run consumes updates until the channel closes or ctx ends. Each message is
// handled on its own goroutine, so conversations interleave freely while the
// chunks of one reply stay in order.
func (h *Handler) Run(ctx context.Context, updates <-chan telegram.Message) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.handleUpdate(ctx, msg)
			}()
		}
	}
}

// handleUpdate routes one message. A panic in a handler is logged and dropped
// so the poll loop stays alive.
func (h *Handler) handleUpdate(ctx context.Context, msg telegram.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler_panic",
				slog.Int64("chat_id", msg.ChatID),
				slog.Any("panic", r))
		}
	}()

	switch msg.Command {
	case "":
		h.handleMessage(ctx, msg)
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "reset":
		h.handleReset(ctx, msg)
	default:
		// Unknown commands are ignored, like any other bot.
	}
}

func (h *Handler) handleStart(ctx context.Context, msg telegram.Message) {
	if !h.cfg.Allowed(msg.UserID) {
		h.send(ctx, msg.ChatID, msgNotAuthorized)
		return
	}
	h.send(ctx, msg.ChatID, msgStart)
}

func (h *Handler) handleHelp(ctx context.Context, msg telegram.Message) {
	if !h.cfg.Allowed(msg.UserID) {
		return
	}
	h.send(ctx, msg.ChatID, msgHelp)
}

// handleReset clears the chat's session mapping. Invocations already in
// flight are unaffected; their session argument was resolved at start.
func (h *Handler) handleReset(ctx context.Context, msg telegram.Message) {
	if !h.cfg.Allowed(msg.UserID) {
		return
	}
	if h.sessions != nil {
		if err := h.sessions.Remove(msg.ChatID); err != nil {
			log.Error("reset_failed",
				slog.Int64("chat_id", msg.ChatID),
				slog.String("error", err.Error()))
			h.send(ctx, msg.ChatID, "Failed to reset the conversation.")
			return
		}
	}
	h.send(ctx, msg.ChatID, msgResetDone)
}

func (h *Handler) handleMessage(ctx context.Context, msg telegram.Message) {
	if !h.cfg.Allowed(msg.UserID) {
		h.send(ctx, msg.ChatID, msgNotAuthorized)
		return
	}
	if msg.Text == "" {
		return
	}

	log.Info("message_received",
		slog.String("username", msg.Username),
		slog.Int64("user_id", msg.UserID),
		slog.String("prompt", preview(msg.Text)))

	// The heartbeat lives exactly as long as the invocation: the deferred
	// stop runs whether Invoke returns normally or panics.
	reply := func() string {
		stop := h.typing.Start(ctx, msg.ChatID)
		defer stop()
		return h.invoker.Invoke(ctx, msg.Text, msg.ChatID)
	}()

	h.deliver(ctx, msg.ChatID, reply)
}

// deliver sends the reply chunk by chunk, in order. A failed chunk is
// replaced with a placeholder and delivery continues.
func (h *Handler) deliver(ctx context.Context, chatID int64, reply string) {
	for c := range chunk.Chunks(reply) {
		if err := h.messenger.SendMessage(ctx, chatID, c); err != nil {
			log.Error("chunk_send_failed",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()))
			h.send(ctx, chatID, msgChunkFailed)
		}
	}
}

// send is a best-effort send whose failure is only logged.
func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Error("send_failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()))
	}
}

func preview(text string) string {
	const max = 100
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
