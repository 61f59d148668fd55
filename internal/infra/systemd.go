package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/carhud/headunit/internal/domain"
)

// systemd unit run as the desktop user (default on a Pi head unit).
const userUnitTemplate = `[Unit]
Description=Car head unit web application
After=network.target bluetooth.target

[Service]
ExecStart={{.ExecutablePath}} serve
Restart=on-failure
RestartSec=5
Environment=DISPLAY=:0

[Install]
WantedBy=default.target
`

// systemd unit installed system-wide when running as root.
const systemUnitTemplate = `[Unit]
Description=Car head unit web application
After=network.target bluetooth.target

[Service]
ExecStart={{.ExecutablePath}} serve
Restart=on-failure
RestartSec=5
User=pi
Environment=DISPLAY=:0

[Install]
WantedBy=multi-user.target
`

const unitName = "headunit.service"

type unitData struct {
	ExecutablePath string
}

// ExecMode represents whether units install user-wide or system-wide.
type ExecMode string

const (
	ExecModeUser   ExecMode = "user"
	ExecModeSystem ExecMode = "system"
)

// DetectExecMode picks the install mode from the effective UID.
func DetectExecMode() ExecMode {
	if os.Geteuid() == 0 {
		return ExecModeSystem
	}
	return ExecModeUser
}

// SystemdUnitManager implements domain.UnitManager for both modes.
type SystemdUnitManager struct {
	mode     ExecMode
	unitDir  string
	unitPath string
	runner   domain.CommandRunner
}

// NewSystemdUnitManager creates a unit manager for the detected mode.
func NewSystemdUnitManager(mode ExecMode, runner domain.CommandRunner) *SystemdUnitManager {
	var unitDir string
	if mode == ExecModeSystem {
		unitDir = "/etc/systemd/system"
	} else {
		home, _ := os.UserHomeDir()
		unitDir = filepath.Join(home, ".config/systemd/user")
	}
	return &SystemdUnitManager{
		mode:     mode,
		unitDir:  unitDir,
		unitPath: filepath.Join(unitDir, unitName),
		runner:   runner,
	}
}

// NewSystemdUnitManagerWithDir creates a unit manager with a custom unit
// directory (for testing).
func NewSystemdUnitManagerWithDir(mode ExecMode, unitDir string, runner domain.CommandRunner) *SystemdUnitManager {
	return &SystemdUnitManager{
		mode:     mode,
		unitDir:  unitDir,
		unitPath: filepath.Join(unitDir, unitName),
		runner:   runner,
	}
}

// UnitPath returns the unit file path.
func (m *SystemdUnitManager) UnitPath() string {
	return m.unitPath
}

// IsInstalled checks if the unit file is present.
func (m *SystemdUnitManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// Install writes the unit file and enables it via systemctl.
func (m *SystemdUnitManager) Install(execPath string) error {
	content, err := m.generateUnitContent(execPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return fmt.Errorf("failed to create unit directory: %w", err)
	}
	if err := os.WriteFile(m.unitPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	if err := m.systemctl("daemon-reload"); err != nil {
		return fmt.Errorf("daemon-reload failed: %w", err)
	}
	if err := m.systemctl("enable", unitName); err != nil {
		return fmt.Errorf("enable failed: %w", err)
	}
	return nil
}

// Uninstall disables and removes the unit.
func (m *SystemdUnitManager) Uninstall() error {
	if !m.IsInstalled() {
		return nil
	}
	// Best effort; the file removal is what matters
	_ = m.systemctl("disable", unitName)

	if err := os.Remove(m.unitPath); err != nil {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}
	return m.systemctl("daemon-reload")
}

// generateUnitContent renders the unit for the given executable path.
func (m *SystemdUnitManager) generateUnitContent(execPath string) ([]byte, error) {
	tmplStr := userUnitTemplate
	if m.mode == ExecModeSystem {
		tmplStr = systemUnitTemplate
	}

	tmpl, err := template.New("unit").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, unitData{ExecutablePath: execPath}); err != nil {
		return nil, fmt.Errorf("failed to render unit: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *SystemdUnitManager) systemctl(args ...string) error {
	if m.mode == ExecModeUser {
		args = append([]string{"--user"}, args...)
	}
	return m.runner.Run("systemctl", args...)
}

// Ensure SystemdUnitManager implements domain.UnitManager.
var _ domain.UnitManager = (*SystemdUnitManager)(nil)
