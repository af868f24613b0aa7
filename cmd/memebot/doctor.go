package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"memebot/internal/backend"
	"memebot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your memebot installation",
		Long: `Verifies that memebot's configuration, Telegram token, backend and
audit journal are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("memebot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config loads and validates
			cfg, err := loadConfig()
			if err != nil {
				printFail("Config", err.Error())
				fmt.Printf("\nRun 'memebot config init' to create a default configuration.\n")
				return fmt.Errorf("config invalid")
			}
			printPass("Config", configSource())
			passed++

			// 2. Telegram token
			if cfg.Telegram.Token == "" {
				printFail("Telegram token", "not set (TELEGRAM_TOKEN or telegram.token)")
				failed++
			} else if tg, err := newTelegram(cfg); err != nil {
				printFail("Telegram token", err.Error())
				failed++
			} else {
				printPass("Telegram token", "@"+tg.Username())
				passed++
			}

			// 3. Admin chat
			if cfg.Telegram.AdminID == 0 {
				printWarn("Admin chat", "telegram.adminId not set, diagnostics only logged")
				warned++
			} else {
				printPass("Admin chat", fmt.Sprintf("%d", cfg.Telegram.AdminID))
				passed++
			}

			// 4. Backend reachable
			if err := checkBackend(cmd.Context(), cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second); err != nil {
				printFail("Backend", err.Error())
				failed++
			} else {
				printPass("Backend", cfg.Backend.BaseURL)
				passed++
			}

			// 5. Audit journal writable
			if cfg.Audit.Journal {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Audit journal", err.Error())
					failed++
				} else {
					printPass("Audit journal", cfg.Audit.DBPath)
					passed++
				}
			}

			// 6. Webhook port
			if err := checkPort(cfg.Webhook.Port); err != nil {
				printWarn("Webhook port", fmt.Sprintf("port %d may be in use: %v", cfg.Webhook.Port, err))
				warned++
			} else {
				printPass("Webhook port", fmt.Sprintf(":%d available", cfg.Webhook.Port))
				passed++
			}
			if cfg.Webhook.Secret == "" {
				printWarn("Webhook secret", "not set, updates are not authenticated")
				warned++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running memebot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nmemebot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! memebot is ready to run.\n")
			}
			return nil
		},
	}
}

// configSource names where the active configuration came from.
func configSource() string {
	if p := resolveConfigPath(); p != "" {
		return p
	}
	return fmt.Sprintf("defaults + environment (%s not found)", config.DefaultConfigPath())
}

// checkBackend only checks that the backend answers HTTP at all.
func checkBackend(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := backend.SharedHTTPClient(timeout).Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("answered %d", resp.StatusCode)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
