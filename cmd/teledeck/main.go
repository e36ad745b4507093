// teledeck relays Telegram messages to a local Claude Code CLI and sends the
// output back, keeping one Claude session per chat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/teledeck/internal/bot"
	"github.com/asheshgoplani/teledeck/internal/claude"
	"github.com/asheshgoplani/teledeck/internal/config"
	"github.com/asheshgoplani/teledeck/internal/logging"
	"github.com/asheshgoplani/teledeck/internal/session"
	"github.com/asheshgoplani/teledeck/internal/telegram"
)

const Version = "0.2.0"

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config.toml")
	debug := flag.Bool("debug", false, "log at debug level and mirror to stderr")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("teledeck " + Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "teledeck:", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Debug = true
		cfg.Log.Level = "debug"
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		fmt.Fprintln(os.Stderr, "teledeck:", err)
		os.Exit(1)
	}

	logging.Init(cfg.Log)
	defer logging.Shutdown()

	if err := run(cfg); err != nil {
		logging.Logger().Error("fatal", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "teledeck:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A store the process cannot trust is fatal; a missing file is fine.
	var store session.Store
	if cfg.SessionMode == config.ModeResume {
		s, err := session.Open(cfg)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		store = s
		defer store.Close()
	}

	client, err := telegram.New(cfg.TelegramToken)
	if err != nil {
		return err
	}

	invoker := claude.New(cfg, store)
	handler := bot.New(cfg, client, invoker, store)

	logging.Logger().Info("bot_starting",
		slog.String("username", client.Username()),
		slog.String("claude_cmd", cfg.ClaudeCommand),
		slog.String("working_dir", cfg.WorkingDir),
		slog.String("session_mode", cfg.SessionMode),
		slog.String("store", cfg.Store))
	fmt.Printf("teledeck %s: @%s relaying to %q (working dir: %s)\n",
		Version, client.Username(), cfg.ClaudeCommand, cfg.WorkingDir)
	fmt.Println("Press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Run(gctx, client.Updates(gctx))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".teledeck", "config.toml")
}
