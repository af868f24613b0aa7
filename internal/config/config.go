package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for memebot.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Webhook  WebhookConfig  `json:"webhook" yaml:"webhook"`
	Links    LinksConfig    `json:"links" yaml:"links"`
	Audit    AuditConfig    `json:"audit" yaml:"audit"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"` // "text" | "json"
	// LogFile, when set, sends logs to a size-rotated file instead of stderr.
	LogFile string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

type TelegramConfig struct {
	Token                   string  `json:"token" yaml:"token"`
	BotUsername             string  `json:"botUsername,omitempty" yaml:"botUsername,omitempty"` // empty = taken from getMe
	AdminID                 int64   `json:"adminId" yaml:"adminId"`                             // 0 = diagnostics only logged
	APIEndpoint             string  `json:"apiEndpoint,omitempty" yaml:"apiEndpoint,omitempty"`
	RequestsPerSecond       float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	RequestTimeoutSeconds   int     `json:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	DeleteSearchPlaceholder bool    `json:"deleteSearchPlaceholder" yaml:"deleteSearchPlaceholder"`
}

type BackendConfig struct {
	BaseURL        string `json:"baseUrl" yaml:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type WebhookConfig struct {
	Port                  int    `json:"port" yaml:"port"`
	Path                  string `json:"path" yaml:"path"`
	Secret                string `json:"secret,omitempty" yaml:"secret,omitempty"`
	PublicURL             string `json:"publicUrl,omitempty" yaml:"publicUrl,omitempty"` // used by "webhook set" when no URL is given
	HandlerTimeoutSeconds int    `json:"handlerTimeoutSeconds" yaml:"handlerTimeoutSeconds"`
}

// LinksConfig holds the public pages quoted in replies.
type LinksConfig struct {
	Storage  string `json:"storage" yaml:"storage"`
	Register string `json:"register" yaml:"register"`
	Auth     string `json:"auth" yaml:"auth"`
}

type AuditConfig struct {
	Journal bool   `json:"journal" yaml:"journal"` // persist entries to SQLite
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// DefaultConfigDir returns the default config directory (~/.memebot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memebot"
	}
	return filepath.Join(home, ".memebot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cannot load %s: %w", path, err)
	}
	return nil
}

// Load reads the config file at path (JSON, or YAML for .yaml/.yml), applies
// environment overrides and validates the result. An empty path means
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))

		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// ApplyEnv overrides config values from the deployment environment.
func ApplyEnv(cfg *Config) error {
	if v := firstEnv("TELEGRAM_TOKEN", "TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := firstEnv("BOT_USERNAME"); v != "" {
		cfg.Telegram.BotUsername = v
	}
	if v := firstEnv("BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := firstEnv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}

	var errs []string
	if v := firstEnv("ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("ADMIN_ID must be an integer chat id, got %q", v))
		} else {
			cfg.Telegram.AdminID = id
		}
	}
	if v := firstEnv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PORT must be an integer, got %q", v))
		} else {
			cfg.Webhook.Port = port
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("environment errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// Save writes cfg as indented JSON.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "text", "json":
		// valid
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Telegram.RequestsPerSecond <= 0 {
		errs = append(errs, "telegram.requestsPerSecond must be > 0")
	}
	if cfg.Telegram.RequestTimeoutSeconds < 1 {
		errs = append(errs, "telegram.requestTimeoutSeconds must be >= 1")
	}

	if u, err := url.Parse(cfg.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "backend.baseUrl must be an absolute http(s) URL")
	}
	if cfg.Backend.TimeoutSeconds < 1 {
		errs = append(errs, "backend.timeoutSeconds must be >= 1")
	}

	if cfg.Webhook.Port < 1 || cfg.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		errs = append(errs, "webhook.path must start with /")
	}
	if cfg.Webhook.HandlerTimeoutSeconds < 1 {
		errs = append(errs, "webhook.handlerTimeoutSeconds must be >= 1")
	}

	if cfg.Audit.Journal && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit.journal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
