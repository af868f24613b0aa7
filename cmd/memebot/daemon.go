package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"memebot/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "tk.memestorage.memebot"
	systemdUnit  = "memebot.service"
)

// userService is the per-user service definition for the current OS.
type userService struct {
	path     string
	template string
	start    string // command that starts the installed service
}

func currentService() (userService, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return userService{}, err
	}
	switch runtime.GOOS {
	case "darwin":
		path := filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		return userService{path: path, template: launchdTemplate, start: "launchctl load " + path}, nil
	case "linux":
		path := filepath.Join(home, ".config", "systemd", "user", systemdUnit)
		return userService{path: path, template: systemdTemplate, start: "systemctl --user enable --now memebot"}, nil
	default:
		return userService{}, fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
	}
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install `memebot serve` as a user service (launchd/systemd)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := currentService()
			if err != nil {
				return err
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			cfgPath := resolveConfigPath()
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			if abs, err := filepath.Abs(cfgPath); err == nil {
				cfgPath = abs
			}

			logDir := filepath.Join(config.DefaultConfigDir(), "logs")
			for _, dir := range []string{logDir, filepath.Dir(svc.path)} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			unit := renderService(svc.template, map[string]string{
				"EXEC":   execPath,
				"CONFIG": cfgPath,
				"LABEL":  launchdLabel,
				"LOG":    filepath.Join(logDir, "memebot.log"),
			})
			if err := os.WriteFile(svc.path, []byte(unit), 0o644); err != nil {
				return err
			}

			fmt.Printf("Service installed: %s\nStart it with: %s\n", svc.path, svc.start)
			return nil
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the memebot user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := currentService()
			if err != nil {
				return err
			}
			if err := os.Remove(svc.path); err != nil {
				return fmt.Errorf("remove service: %w", err)
			}
			fmt.Printf("Service removed: %s\n", svc.path)
			return nil
		},
	}
}

// renderService fills {{NAME}} placeholders.
func renderService(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return tmpl
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key><string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>KeepAlive</key><true/>
    <key>StandardOutPath</key><string>{{LOG}}</string>
    <key>StandardErrorPath</key><string>{{LOG}}</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=memebot Telegram webhook server
Wants=network-online.target
After=network-online.target

[Service]
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure

[Install]
WantedBy=default.target
`
