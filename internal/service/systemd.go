// Package service installs the management server as a systemd unit.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const (
	unitName = "deploy-manager"
	unitPath = "/etc/systemd/system/deploy-manager.service"
)

// Status is the state systemd reports for the unit.
type Status struct {
	Installed   bool   `json:"installed"`
	Enabled     bool   `json:"enabled"`
	Running     bool   `json:"running"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
}

// UnitConfig fills the unit template.
type UnitConfig struct {
	ExecPath   string
	ConfigPath string
	User       string
	WorkingDir string
	// ReadWritePaths are the instance directories builds write to. The unit
	// runs with a read-only file system everywhere else.
	ReadWritePaths []string
}

const unitTemplate = `[Unit]
Description=Deploy Manager - instance build and restore API
After=network.target

[Service]
Type=simple
User={{.User}}
Group={{.User}}
WorkingDirectory={{.WorkingDir}}
ExecStart={{.ExecPath}} -config {{.ConfigPath}}
Restart=always
RestartSec=5
StandardOutput=journal
StandardError=journal

NoNewPrivileges=true
ProtectSystem=full
PrivateTmp=true
ReadWritePaths={{.WorkingDir}}{{range .ReadWritePaths}} {{.}}{{end}}

[Install]
WantedBy=multi-user.target
`

// DefaultUnitConfig describes the running binary with config in /etc/deploy-manager.
func DefaultUnitConfig() UnitConfig {
	execPath, _ := os.Executable()
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}

	return UnitConfig{
		ExecPath:   execPath,
		ConfigPath: "/etc/deploy-manager/config.yaml",
		User:       "root",
		WorkingDir: "/etc/deploy-manager",
	}
}

// Render returns the unit file content.
func Render(cfg UnitConfig) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("render unit template: %w", err)
	}
	return buf.String(), nil
}

func checkSystemd() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("systemd units are only supported on Linux")
	}
	if _, err := exec.LookPath("systemctl"); err != nil {
		return fmt.Errorf("systemctl not found: %w", err)
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("root privileges required")
	}
	return nil
}

// Install writes the unit, enables it and starts it.
func Install(cfg UnitConfig) error {
	if err := checkSystemd(); err != nil {
		return err
	}

	content, err := Render(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	for _, args := range [][]string{{"daemon-reload"}, {"enable", unitName}, {"start", unitName}} {
		if err := systemctl(args...); err != nil {
			return fmt.Errorf("systemctl %s: %w", args[0], err)
		}
	}
	return nil
}

// Uninstall stops, disables and removes the unit.
func Uninstall() error {
	if err := checkSystemd(); err != nil {
		return err
	}

	// Not running or not enabled is fine.
	_ = systemctl("stop", unitName)
	_ = systemctl("disable", unitName)

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w", err)
	}
	return nil
}

// Query reports the unit state. Without systemd it reports a zero Status.
func Query() (*Status, error) {
	st := &Status{}
	if runtime.GOOS != "linux" {
		return st, nil
	}
	if _, err := exec.LookPath("systemctl"); err != nil {
		return st, nil
	}

	if _, err := os.Stat(unitPath); err == nil {
		st.Installed = true
	}
	if v, err := property("ActiveState"); err == nil {
		st.ActiveState = v
		st.Running = v == "active"
	}
	if v, err := property("SubState"); err == nil {
		st.SubState = v
	}
	if out, err := exec.Command("systemctl", "is-enabled", unitName).Output(); err == nil {
		st.Enabled = strings.TrimSpace(string(out)) == "enabled"
	}
	return st, nil
}

func systemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func property(name string) (string, error) {
	out, err := exec.Command("systemctl", "show", unitName, "--property="+name, "--value").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
