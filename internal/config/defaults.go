package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Telegram: TelegramConfig{
			RequestsPerSecond:       30,
			RequestTimeoutSeconds:   15,
			DeleteSearchPlaceholder: true,
		},
		Backend: BackendConfig{
			BaseURL:        "https://www.memestorage.tk",
			TimeoutSeconds: 10,
		},
		Webhook: WebhookConfig{
			Port:                  8080,
			Path:                  "/webhook",
			HandlerTimeoutSeconds: 60,
		},
		Links: LinksConfig{
			Storage:  "memestorage.tk/storage",
			Register: "www.memestorage.tk/register",
			Auth:     "www.memestorage.tk/auth",
		},
		Audit: AuditConfig{
			Journal: false,
			DBPath:  "~/.memebot/audit.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
