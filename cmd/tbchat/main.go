package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/thinkwright/tastebuddy-chat/internal/app"
	"github.com/thinkwright/tastebuddy-chat/internal/config"
	"github.com/thinkwright/tastebuddy-chat/internal/identity"
	"github.com/thinkwright/tastebuddy-chat/internal/logging"
	"github.com/thinkwright/tastebuddy-chat/internal/transport"
	"github.com/thinkwright/tastebuddy-chat/internal/ui"
	"github.com/thinkwright/tastebuddy-chat/internal/watcher"
	"golang.org/x/term"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Chat server URL (overrides config)")
	rootCmd.PersistentFlags().String("name", "", "Display name (overrides config)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug logging")

	rootCmd.AddCommand(watchCmd, sayCmd, resetCmd, exportCmd, forgetCmd, configCmd)
}

var rootCmd = &cobra.Command{
	Use:   "tbchat",
	Short: "Group chat with the TasteBuddy recommendation assistant",
	Long: `tbchat joins the shared TasteBuddy group chat from the terminal.
Everyone on the same server sees the same conversation. Mention @tastebuddy
to ask the assistant directly.`,
	Example: `
# Join the chat
tbchat --name Kelly

# Follow the conversation without a TUI
tbchat watch

# Send one message and exit
tbchat say "@tastebuddy sushi near union square?"
  `,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("stdout is not a terminal; use `tbchat watch` for headless output")
		}

		var opts []app.Option
		if cmd.Flags().Changed("name") {
			opts = append(opts, app.WithPinnedName())
		}
		s, err := openSession(cmd, opts...)
		if err != nil {
			return err
		}
		defer s.Close()

		var cw *watcher.Watcher
		if err := os.MkdirAll(config.ConfigDir(), 0o755); err == nil {
			if cw, err = watcher.New(config.Path()); err != nil {
				slog.Warn("config watch unavailable", "error", err)
			} else {
				defer cw.Close()
			}
		}

		p := tea.NewProgram(
			ui.NewModel(cmd.Context(), s.app, s.cfg.ServerURL, cw),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := p.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

// session is everything a command needs to talk to the chat server.
type session struct {
	cfg    config.Config
	app    *app.App
	ids    *identity.Store
	logger *slog.Logger
	logs   io.Closer
}

func (s *session) Close() {
	s.ids.Close()
	s.logs.Close()
}

func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		cfg.ServerURL = v
	}
	if v, _ := cmd.Flags().GetString("name"); v != "" {
		cfg.DisplayName = v
	}
	return cfg
}

func openSession(cmd *cobra.Command, opts ...app.Option) (*session, error) {
	cfg := loadConfig(cmd)
	debug, _ := cmd.Flags().GetBool("debug")
	logger, logs := logging.Setup(cfg.LogPath(), debug)

	ids, err := identity.Open(identity.DBPath())
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("open identity store: %w", err)
	}

	client := transport.New(cfg.ServerURL, transport.WithTimeout(cfg.Timeout()))
	logger.Info("session started", "server", client.BaseURL(), "name", cfg.DisplayName, "version", version)

	return &session{
		cfg:    cfg,
		app:    app.New(cfg, ids, client, logger, opts...),
		ids:    ids,
		logger: logger,
		logs:   logs,
	}, nil
}
