package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-chat-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-chat-widget/internal/config"
	"github.com/wolfman30/clinic-chat-widget/internal/session"
	"github.com/wolfman30/clinic-chat-widget/internal/tui"
	"github.com/wolfman30/clinic-chat-widget/internal/widget"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

var version = "dev"

type flags struct {
	backend     string
	visitor     string
	sessionFile string
	logFile     string
	idle        time.Duration
	title       string
	newSession  bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "widget-tui",
		Short: "Chat with the clinic assistant from the terminal",
		Long: `Runs the clinic chat widget in the terminal against a chat backend.

The session id is kept in a local YAML file so the next run resumes the
same conversation. Logs go to a file so they do not disturb the screen.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg := appconfig.Load()
			applyFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.backend, "backend", "", "Chat backend base URL (overrides CHAT_BACKEND_URL)")
	cmd.Flags().StringVar(&f.visitor, "visitor", defaultVisitor(), "Visitor key the session id is stored under")
	cmd.Flags().StringVar(&f.sessionFile, "session-file", "", "Session file (defaults to ~/.clinic-widget/sessions.yaml)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "widget-tui.log", "Log file path")
	cmd.Flags().DurationVar(&f.idle, "idle", 0, "Idle time before the nudge (overrides WIDGET_IDLE_TIMEOUT)")
	cmd.Flags().StringVar(&f.title, "title", "Клиника ЦЭСИ", "Title shown in the header")
	cmd.Flags().BoolVar(&f.newSession, "new", false, "Start a new session instead of resuming")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return cmd
}

func applyFlags(cmd *cobra.Command, cfg *appconfig.Config, f *flags) {
	cfg.SessionStore = appconfig.SessionStoreFile
	if cmd.Flags().Changed("backend") {
		cfg.BackendURL = f.backend
	}
	if cmd.Flags().Changed("idle") {
		cfg.IdleTimeout = f.idle
	}
	if f.sessionFile != "" {
		cfg.SessionFile = f.sessionFile
	}
}

func defaultVisitor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "tui:" + u.Username
	}
	return "tui:local"
}

func run(ctx context.Context, cfg *appconfig.Config, f *flags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logOut, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()
	logger := logging.NewWithWriter(cfg.LogLevel, logOut)

	store, err := session.FromConfig(cfg, nil)
	if err != nil {
		return err
	}
	restored := ""
	if !f.newSession {
		if restored, err = store.Load(ctx, f.visitor); err != nil {
			logger.Warn("failed to restore session", "visitor", f.visitor, "error", err)
			restored = ""
		}
	}

	chatClient, err := bootstrap.BuildTransport(cfg, logger)
	if err != nil {
		return err
	}

	sink := &tui.Sink{}
	ctrl, err := widget.New(widget.Options{
		Transport:      chatClient,
		Sink:           sink,
		Logger:         logger,
		IdleTimeout:    cfg.IdleTimeout,
		GreetingDelay:  cfg.GreetingDelay,
		SessionID:      restored,
		SessionKey:     f.visitor,
		Sessions:       store,
		FallbackPhone:  cfg.FallbackPhone,
		BookingTrigger: cfg.BookingTrigger,
		StarterTopics:  cfg.StarterTopics,
	})
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()

	logger.Info("terminal widget started", "visitor", f.visitor, "session_id", ctrl.State().SessionID)

	p := tea.NewProgram(tui.NewModel(ctx, ctrl, f.title), tea.WithAltScreen())
	sink.Attach(p)
	_, err = p.Run()
	sink.Attach(nil)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
