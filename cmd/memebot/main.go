package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memebot/internal/audit"
	"memebot/internal/backend"
	"memebot/internal/channel"
	"memebot/internal/config"
	"memebot/internal/reply"
	"memebot/internal/router"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	envPath    string // overridable via --env flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "memebot",
		Short:   "memebot: Telegram bridge to the memestorage backend",
		Long:    "memebot answers Telegram webhook updates: meme search, inline search and photo uploads.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file, .json or .yaml (default: ~/.memebot/config.json if present)")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file loaded before the config")

	root.AddCommand(serveCmd())
	root.AddCommand(handleCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the --config path, the default path when that
// file exists, or "" for defaults plus environment.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return ""
}

// loadConfig loads .env and the config file, then rebuilds the logger from
// the general section.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg.General, logOutput(cfg.General))
	return cfg, nil
}

// logOutput returns stderr, or a rotating file when general.logFile is set.
func logOutput(g config.GeneralConfig) io.Writer {
	if g.LogFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   g.LogFile,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

func newLogger(g config.GeneralConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch g.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if g.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app holds the wired components for one process.
type app struct {
	router  *router.Router
	journal *audit.SQLiteStore // nil when the journal is disabled
}

func (a *app) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
}

func newTelegram(cfg *config.Config) (*channel.Telegram, error) {
	timeout := time.Duration(max(cfg.Telegram.RequestTimeoutSeconds, cfg.Backend.TimeoutSeconds)) * time.Second
	return channel.NewTelegram(channel.TelegramConfig{
		Token:             cfg.Telegram.Token,
		APIEndpoint:       cfg.Telegram.APIEndpoint,
		Client:            backend.SharedHTTPClient(timeout),
		RequestsPerSecond: cfg.Telegram.RequestsPerSecond,
		Logger:            logger,
	})
}

func buildApp(cfg *config.Config) (*app, error) {
	tg, err := newTelegram(cfg)
	if err != nil {
		return nil, err
	}

	replies := reply.New(reply.Config{
		Platform: tg,
		AdminID:  cfg.Telegram.AdminID,
		Logger:   logger,
	})
	if cfg.Telegram.AdminID == 0 {
		logger.Warn("telegram.adminId not set, admin diagnostics are only logged")
	}

	gateway := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		Admin:   replies,
		Logger:  logger,
	})

	a := &app{}
	trailCfg := audit.TrailConfig{Admin: replies, Logger: logger}
	if cfg.Audit.Journal {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("audit journal: %w", err)
		}
		a.journal = store
		trailCfg.Store = store
	}

	botUsername := cfg.Telegram.BotUsername
	if botUsername == "" {
		botUsername = tg.Username()
	}

	a.router = router.New(router.Config{
		Platform:    tg,
		Replies:     replies,
		Backend:     gateway,
		Auditor:     audit.NewTrail(trailCfg),
		BotUsername: botUsername,
		Links: router.Links{
			Storage:  cfg.Links.Storage,
			Register: cfg.Links.Register,
			Auth:     cfg.Links.Auth,
		},
		DeletePlaceholder: cfg.Telegram.DeleteSearchPlaceholder,
		Logger:            logger,
	})
	return a, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Listens for Telegram webhook updates until interrupted. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			wh := channel.NewWebhook(channel.WebhookConfig{
				Port:           cfg.Webhook.Port,
				Path:           cfg.Webhook.Path,
				Secret:         cfg.Webhook.Secret,
				HandlerTimeout: time.Duration(cfg.Webhook.HandlerTimeoutSeconds) * time.Second,
				Metrics:        cfg.Metrics.Enabled,
				Handler:        a.router,
				Logger:         logger,
			})
			if err := wh.Start(ctx); err != nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

func handleCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "handle [file]",
		Short: "Process a single update read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var body []byte
			if len(args) == 1 && args[0] != "-" {
				body, err = os.ReadFile(args[0])
			} else {
				if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Reading update JSON from stdin (Ctrl-D to finish)...")
				}
				body, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
			}
			if err != nil {
				return fmt.Errorf("read update: %w", err)
			}

			if printOnly {
				return printUpdate(cmd.OutOrStdout(), body)
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Webhook.HandlerTimeoutSeconds)*time.Second)
			defer cancel()

			handled, err := channel.Process(ctx, a.router, body)
			if err != nil {
				return err
			}
			if !handled {
				logger.Info("update ignored: neither an inline query nor a message")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the decoded event without contacting Telegram or the backend")
	return cmd
}

// printUpdate decodes an update the way the webhook does and dumps the
// resulting event.
func printUpdate(w io.Writer, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	event, ok := channel.EventFromUpdate(update)
	if !ok {
		fmt.Fprintln(w, "update ignored: neither an inline query nor a message")
		return nil
	}
	fmt.Fprintf(w, "%# v\n", pretty.Formatter(event))
	return nil
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	var dropPending bool

	set := &cobra.Command{
		Use:   "set [url]",
		Short: "Register the webhook URL with Telegram (default: webhook.publicUrl)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target := cfg.Webhook.PublicURL
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" {
				return fmt.Errorf("specify a URL: memebot webhook set <url>")
			}
			tg, err := newTelegram(cfg)
			if err != nil {
				return err
			}
			if err := tg.SetWebhook(cmd.Context(), target, cfg.Webhook.Secret, dropPending); err != nil {
				return err
			}
			logger.Info("webhook registered", "url", target, "secret", cfg.Webhook.Secret != "")
			return nil
		},
	}
	set.Flags().BoolVar(&dropPending, "drop-pending", false, "drop updates queued while no webhook was set")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tg, err := newTelegram(cfg)
			if err != nil {
				return err
			}
			if err := tg.DeleteWebhook(cmd.Context(), dropPending); err != nil {
				return err
			}
			logger.Info("webhook deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&dropPending, "drop-pending", false, "drop queued updates")

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tg, err := newTelegram(cfg)
			if err != nil {
				return err
			}
			wi, err := tg.GetWebhookInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("URL:             %s\n", wi.URL)
			fmt.Printf("Pending updates: %d\n", wi.PendingUpdateCount)
			if wi.LastErrorMessage != "" {
				fmt.Printf("Last error:      %s (%s)\n", wi.LastErrorMessage, wi.LastErrorAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.AddCommand(set, del, info)
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit journal",
	}

	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Audit.Journal {
				return fmt.Errorf("audit journal is disabled (set audit.journal: true)")
			}
			store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				fmt.Fprintf(out, "%s  %-12s  %-20s  %s\n", e.At.Format(time.RFC3339), e.Kind, "@"+e.Username, audit.FormatEntry(e))
			}
			return nil
		},
	}
	tail.Flags().IntVarP(&limit, "lines", "n", 20, "number of entries to show")

	cmd.AddCommand(tail)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists: %s", path)
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. webhook.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries, err := config.ListPaths(config.Sanitize(cfg))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s = %v\n", e.Path, e.Value)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			if p := resolveConfigPath(); p != "" {
				fmt.Println(p)
				return
			}
			fmt.Printf("%s (not present, using defaults and environment)\n", config.DefaultConfigPath())
		},
	})

	return cmd
}
