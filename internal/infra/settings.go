package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/carhud/headunit/internal/domain"
)

// Settings file consumed by the receiver engine. The engine ignores unknown
// keys and falls back to defaults for missing ones, so the full key set is
// rendered every time. Tuned for a Raspberry Pi 5 with a 7" touchscreen.
const settingsTemplate = `# FastCarPlay settings - generated by headunit, do not edit
# Regenerated in full on every engine start

# Display
width = {{.Width}}
height = {{.Height}}
source-fps = 30
fps = 30
fullscreen = {{.Fullscreen}}
cursor = false

# Dongle (vendor/product ID autodetected; see lsusb for variants)
encryption = false

# Connection
autoconnect = true
weak-charge = true
left-hand-drive = true
night-mode = 2

# WiFi / audio routing
wifi-5 = true
bluetooth-audio = false
mic-type = 1

# Android Auto
android-dpi = 140
android-resolution = 1
android-media-delay = 300

# Performance
font-size = 24
vsync = false
hw-decode = true
fast-render-scale = true
video-buffer-size = 32
audio-buffer-size = 32
audio-buffer-wait = 2
audio-buffer-wait-call = 8
audio-fade = 0.3

# Named pipe for key commands from the web layer
key-pipe-path = {{.PipePath}}

logging = false
`

type settingsData struct {
	Width      int
	Height     int
	Fullscreen bool
	PipePath   string
}

// FileSettingsWriter implements domain.SettingsWriter. The settings file
// is only ever consumed by the engine binary; the supervisor never reads
// it back.
type FileSettingsWriter struct {
	path     string
	pipePath string
	tmpl     *template.Template
}

// NewFileSettingsWriter creates a writer targeting the given settings path.
// The pipe path is rendered into the file so the engine knows where to
// listen for key commands.
func NewFileSettingsWriter(path, pipePath string) *FileSettingsWriter {
	return &FileSettingsWriter{
		path:     path,
		pipePath: pipePath,
		tmpl:     template.Must(template.New("settings").Parse(settingsTemplate)),
	}
}

// Path returns the settings file path.
func (w *FileSettingsWriter) Path() string {
	return w.path
}

// Write renders the config and replaces the settings file atomically
// (write to temp, rename) so the engine never observes a partial file.
func (w *FileSettingsWriter) Write(cfg domain.EngineConfig) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	var buf bytes.Buffer
	data := settingsData{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Fullscreen: cfg.Fullscreen,
		PipePath:   w.pipePath,
	}
	if err := w.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render settings: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", w.path, os.Getpid())
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileSettingsWriter implements domain.SettingsWriter.
var _ domain.SettingsWriter = (*FileSettingsWriter)(nil)
