// Package claude runs the Claude Code CLI as a subprocess and turns every
// outcome, including failures, into reply text for the chat.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/asheshgoplani/teledeck/internal/config"
	"github.com/asheshgoplani/teledeck/internal/logging"
	"github.com/asheshgoplani/teledeck/internal/session"
)

var log = logging.ForComponent(logging.CompClaude)

const (
	// nestedMarkerEnv is set by Claude Code in its own subprocesses; it must
	// not leak into our invocation or the CLI refuses to run nested.
	nestedMarkerEnv = "CLAUDECODE"

	msgNotInstalled  = "Error: `claude` CLI not found. Make sure Claude Code is installed and on PATH."
	msgEmptyResponse = "(empty response)"
)

// Invoker executes the claude CLI with one session per chat.
type Invoker struct {
	command    string
	workingDir string
	timeout    time.Duration
	stateless  bool
	sessions   session.Store
	run        runner
}

// New builds an Invoker from the process configuration. In stateless mode the
// store is never consulted and may be nil.
func New(cfg *config.Config, sessions session.Store) *Invoker {
	return &Invoker{
		command:    cfg.ClaudeCommand,
		workingDir: cfg.WorkingDir,
		timeout:    cfg.InvokeTimeout(),
		stateless:  cfg.SessionMode == config.ModeStateless,
		sessions:   sessions,
		run:        &execRunner{},
	}
}

// Invoke runs the CLI with the prompt and returns the reply text. Every
// failure path comes back as text too; nothing here reaches the user as a
// raw error.
//
// A non-zero exit whose stderr mentions the session is treated as a corrupted
// session: the mapping entry is cleared and the invocation retried exactly
// once with a fresh session. A second session failure is surfaced as-is.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, chatID int64) string {
	reply, sessionCorrupt := inv.invokeOnce(ctx, prompt, chatID)
	if sessionCorrupt {
		reply, _ = inv.invokeOnce(ctx, prompt, chatID)
	}
	return reply
}

func (inv *Invoker) invokeOnce(ctx context.Context, prompt string, chatID int64) (reply string, sessionCorrupt bool) {
	args := []string{"-p", prompt, "--output-format", "text", "--dangerously-skip-permissions"}

	if !inv.stateless {
		sessionArgs, err := inv.sessionArgs(chatID)
		if err != nil {
			log.Error("session_store_failed",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()))
			return fmt.Sprintf("Error calling Claude: %v", err), false
		}
		args = append(args, sessionArgs...)
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	out, err := inv.run.Run(runCtx, runRequest{
		Command: inv.command,
		Args:    args,
		Dir:     inv.workingDir,
		Env:     hostEnv(),
	})

	switch {
	case err == nil:
	case isTimeout(runCtx, err):
		return fmt.Sprintf("Claude timed out after %d seconds.", int(inv.timeout.Seconds())), false
	case isNotFound(err):
		return msgNotInstalled, false
	default:
		return fmt.Sprintf("Error calling Claude: %v", err), false
	}

	if out.ExitCode != 0 {
		errText := strings.TrimSpace(out.Stderr)
		if errText == "" {
			errText = "Unknown error"
		}
		reply := fmt.Sprintf("Claude error (exit %d): %s", out.ExitCode, errText)

		lower := strings.ToLower(errText)
		if !inv.stateless && (strings.Contains(lower, "session") || strings.Contains(lower, "resume")) {
			log.Warn("session_corrupted",
				slog.Int64("chat_id", chatID),
				slog.String("error", errText))
			if err := inv.sessions.Remove(chatID); err != nil {
				log.Error("session_reset_failed",
					slog.Int64("chat_id", chatID),
					slog.String("error", err.Error()))
				return reply, false
			}
			return reply, true
		}
		return reply, false
	}

	if text := strings.TrimSpace(out.Stdout); text != "" {
		return text, false
	}
	return msgEmptyResponse, false
}

// sessionArgs resumes the chat's existing session or creates a fresh one with
// an explicit identifier so future resumes can target it.
func (inv *Invoker) sessionArgs(chatID int64) ([]string, error) {
	id, ok, err := inv.sessions.Get(chatID)
	if err != nil {
		return nil, err
	}
	if ok {
		return []string{"--resume", id}, nil
	}
	id, err = inv.sessions.Create(chatID)
	if err != nil {
		return nil, err
	}
	return []string{"--session-id", id}, nil
}

// hostEnv returns the process environment minus the nested-run marker.
func hostEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, nestedMarkerEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
