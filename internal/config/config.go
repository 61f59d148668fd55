// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration. Every field has a default
// suited to the target head unit, so a bare `headunit serve` works on
// the Pi without any environment set up.
type Config struct {
	Server ServerConfig `split_words:"true"`
	Engine EngineConfig `split_words:"true"`
	Phone  PhoneConfig  `split_words:"true"`
	Data   DataConfig   `split_words:"true"`
	Log    LogConfig    `split_words:"true"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `default:"0.0.0.0"`
	Port int    `default:"8000"`
}

// EngineConfig locates the receiver engine and its control files.
type EngineConfig struct {
	Dir          string `default:"~/FastCarPlay"`
	Executable   string `default:""` // defaults to <dir>/out/app
	SettingsPath string `default:"" split_words:"true"` // defaults to <dir>/conf/settings.txt
	PipePath     string `default:"/tmp/carplay_pipe" split_words:"true"`
	Display      string `default:":0"`
	Width        int    `default:"800"`
	Height       int    `default:"480"`
}

// PhoneConfig tunes the phone event sources.
type PhoneConfig struct {
	PollInterval time.Duration `default:"2s" split_words:"true"`
}

// DataConfig locates persistent state (call history, encryption key).
type DataConfig struct {
	Dir string `default:"~/.local/share/headunit"`
}

// LogConfig configures zap output.
type LogConfig struct {
	Level string `default:"info"`
	Path  string `default:""` // empty means stdout
}

// Load reads configuration from HEADUNIT_* environment variables and
// resolves derived paths.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("headunit", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Engine.Dir = expandHome(cfg.Engine.Dir)
	cfg.Data.Dir = expandHome(cfg.Data.Dir)

	if cfg.Engine.Executable == "" {
		cfg.Engine.Executable = filepath.Join(cfg.Engine.Dir, "out", "app")
	} else {
		cfg.Engine.Executable = expandHome(cfg.Engine.Executable)
	}
	if cfg.Engine.SettingsPath == "" {
		cfg.Engine.SettingsPath = filepath.Join(cfg.Engine.Dir, "conf", "settings.txt")
	} else {
		cfg.Engine.SettingsPath = expandHome(cfg.Engine.SettingsPath)
	}

	return &cfg, nil
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandHome resolves a leading ~ against the current user's home
// directory. Paths without one pass through untouched.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
