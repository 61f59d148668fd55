// Package usecase contains application business logic.
package usecase

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// Key codes from the FastCarPlay pipe protocol. "select" is special-cased:
// it expands to select_down then select_up to emulate a tap.
var keyCodes = map[string]byte{
	"left":        100,
	"right":       101,
	"select_down": 104,
	"select_up":   105,
	"back":        106,
	"home":        200,
}

const (
	keySelectDown byte = 104
	keySelectUp   byte = 105
)

// SupervisorConfig holds engine paths and lifecycle timing.
// Tests shrink the durations.
type SupervisorConfig struct {
	ExecutablePath string               // Engine binary (out/app under the engine dir)
	EngineDir      string               // Working directory for the spawned engine
	DisplayEnv     string               // DISPLAY value when the environment has none
	GracePeriod    time.Duration        // Wait after spawn to catch instant crashes
	StopTimeout    time.Duration        // SIGTERM grace before SIGKILL
	RestartPause   time.Duration        // Pause between stop and start on restart
	DefaultConfig  domain.EngineConfig  // Used by restart and fullscreen-only starts
}

// DefaultSupervisorConfig returns production timing for the given engine
// location, tuned for the 7" 800x480 touchscreen.
func DefaultSupervisorConfig(engineDir, execPath string) SupervisorConfig {
	return SupervisorConfig{
		ExecutablePath: execPath,
		EngineDir:      engineDir,
		DisplayEnv:     ":0",
		GracePeriod:    500 * time.Millisecond,
		StopTimeout:    3 * time.Second,
		RestartPause:   time.Second,
		DefaultConfig: domain.EngineConfig{
			Fullscreen: true,
			Width:      800,
			Height:     480,
		},
	}
}

// engineProc is one spawned engine instance. done closes once Wait returns,
// so the monitor goroutine and Stop can both observe the exit.
type engineProc struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

// Supervisor owns the lifecycle of the external receiver engine: settings
// generation, spawn, liveness, key pipe input and status reporting.
//
// Locking: opMu serializes start/stop/restart; mu guards the state fields.
// Status and SendKey take only mu, so they stay responsive during a slow
// stop and may race benignly with a concurrent lifecycle operation.
type Supervisor struct {
	config   SupervisorConfig
	settings domain.SettingsWriter
	pipe     domain.KeyPipe
	usb      domain.USBProber
	build    domain.BuildChecker
	pm       domain.ProcessManager
	logger   *zap.Logger

	opMu sync.Mutex

	mu              sync.Mutex
	running         bool
	state           domain.EngineState
	connectedDevice string
	errorMessage    string
	proc            *engineProc
	lastConfig      domain.EngineConfig
}

// NewSupervisor creates an engine supervisor. It is torn down with a
// best-effort Stop at application shutdown.
func NewSupervisor(
	config SupervisorConfig,
	settings domain.SettingsWriter,
	pipe domain.KeyPipe,
	usb domain.USBProber,
	build domain.BuildChecker,
	pm domain.ProcessManager,
	logger *zap.Logger,
) *Supervisor {
	return &Supervisor{
		config:     config,
		settings:   settings,
		pipe:       pipe,
		usb:        usb,
		build:      build,
		pm:         pm,
		logger:     logger,
		state:      domain.EngineStopped,
		lastConfig: config.DefaultConfig,
	}
}

// Status returns a snapshot. It never fails: probes that error read as
// false/empty so the UI always has something to render.
func (s *Supervisor) Status() domain.EngineStatus {
	s.mu.Lock()
	st := domain.EngineStatus{
		Running:         s.running,
		State:           s.state,
		ConnectedDevice: s.connectedDevice,
		Error:           s.errorMessage,
		ExecutablePath:  s.config.ExecutablePath,
		SettingsPath:    s.settings.Path(),
	}
	s.mu.Unlock()

	st.Built = s.build.Built()
	st.DongleDetected = s.usb.DongleDetected()
	return st
}

// Start spawns the engine with the given configuration. Idempotent when
// already running. The settings file is rewritten in full before every
// spawn; a process that dies within the grace period is reported as a
// failure carrying its captured output.
func (s *Supervisor) Start(cfg domain.EngineConfig) domain.EngineResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(cfg)
}

// StartDefault starts with the tuned defaults, overriding only fullscreen.
func (s *Supervisor) StartDefault(fullscreen bool) domain.EngineResult {
	cfg := s.config.DefaultConfig
	cfg.Fullscreen = fullscreen
	return s.Start(cfg)
}

func (s *Supervisor) start(cfg domain.EngineConfig) domain.EngineResult {
	s.mu.Lock()
	alreadyRunning := s.running
	s.mu.Unlock()

	if alreadyRunning {
		return s.result(true, "engine already running")
	}

	if !s.build.Built() {
		return s.result(false, "engine not built, run the build script first")
	}

	if err := s.settings.Write(cfg); err != nil {
		s.setError(err.Error())
		return s.result(false, fmt.Sprintf("failed to write settings: %v", err))
	}

	cmd := exec.Command(s.config.ExecutablePath, s.settings.Path())
	cmd.Dir = s.config.EngineDir
	cmd.Env = s.engineEnv()

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setError(err.Error())
		return s.result(false, fmt.Sprintf("failed to attach engine output: %v", err))
	}

	if err := cmd.Start(); err != nil {
		msg := err.Error()
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			msg = "engine executable not found"
		}
		s.setError(msg)
		return s.result(false, msg)
	}

	proc := &engineProc{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.waitErr = cmd.Wait()
		close(proc.done)
	}()

	// Grace period distinguishes "spawned" from "spawned and instantly crashed"
	select {
	case <-proc.done:
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "engine terminated unexpectedly"
		}
		s.setError(msg)
		s.logger.Warn("engine died during grace period", zap.String("output", msg))
		return s.result(false, fmt.Sprintf("engine failed to start: %s", msg))

	case <-time.After(s.config.GracePeriod):
	}

	s.mu.Lock()
	s.running = true
	s.state = domain.EngineRunning
	s.errorMessage = ""
	s.proc = proc
	s.lastConfig = cfg
	s.mu.Unlock()

	go s.monitor(proc, stdout)

	s.logger.Info("engine started",
		zap.Int("pid", cmd.Process.Pid),
		zap.Bool("fullscreen", cfg.Fullscreen),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return s.result(true, "engine started")
}

// Stop terminates the engine: SIGTERM, bounded wait, SIGKILL. It never
// reports failure; the desired end-state (not running) is enforced
// regardless of what the signals do.
func (s *Supervisor) Stop() domain.EngineResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop()
}

func (s *Supervisor) stop() domain.EngineResult {
	s.mu.Lock()
	proc := s.proc
	wasRunning := s.running
	s.mu.Unlock()

	if !wasRunning || proc == nil {
		s.clearState()
		return s.result(true, "engine was not running")
	}

	pid := proc.cmd.Process.Pid
	if err := s.pm.Terminate(pid); err != nil {
		s.logger.Debug("SIGTERM failed, engine may have exited", zap.Int("pid", pid), zap.Error(err))
	}

	select {
	case <-proc.done:
	case <-time.After(s.config.StopTimeout):
		s.logger.Warn("engine ignored SIGTERM, killing", zap.Int("pid", pid))
		if err := s.pm.Kill(pid); err != nil {
			s.logger.Debug("SIGKILL failed", zap.Int("pid", pid), zap.Error(err))
		}
		<-proc.done
	}

	s.clearState()
	s.logger.Info("engine stopped", zap.Int("pid", pid))
	return s.result(true, "engine stopped")
}

// Restart is stop, a settling pause, then start with the last-used
// configuration.
func (s *Supervisor) Restart() domain.EngineResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stop()
	time.Sleep(s.config.RestartPause)

	s.mu.Lock()
	cfg := s.lastConfig
	s.mu.Unlock()
	return s.start(cfg)
}

// SendKey writes a symbolic key to the engine's command pipe. "select"
// sends press and release; everything else is a single byte. No response
// is read back.
func (s *Supervisor) SendKey(key string) domain.Result {
	name := strings.ToLower(strings.TrimSpace(key))

	var codes []byte
	if name == "select" {
		codes = []byte{keySelectDown, keySelectUp}
	} else if code, ok := keyCodes[name]; ok {
		codes = []byte{code}
	} else {
		return domain.Result{Success: false, Message: fmt.Sprintf("unknown key: %s", key)}
	}

	if err := s.pipe.Write(codes); err != nil {
		return domain.Result{Success: false, Message: err.Error()}
	}
	return domain.Result{Success: true, Message: fmt.Sprintf("key %s sent", name)}
}

// monitor follows the engine's stdout line by line, mirroring connection
// markers into supervisor state. The text protocol is whatever the engine
// happens to print; the marker substrings are kept verbatim for
// compatibility. When the stream ends the process has exited and the
// state flips to stopped, unless a newer lifecycle op already owns it.
func (s *Supervisor) monitor(proc *engineProc, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		s.logger.Debug("engine output", zap.String("line", line))

		switch {
		// Checked before "Connected": the marker is a substring of this one
		case strings.Contains(line, "Disconnected"):
			s.mu.Lock()
			s.state = domain.EngineWaiting
			s.connectedDevice = ""
			s.mu.Unlock()
		case strings.Contains(line, "Connected"):
			s.mu.Lock()
			s.state = domain.EngineConnected
			s.connectedDevice = "CarPlay/Android Auto"
			s.mu.Unlock()
		case strings.Contains(line, "Error"):
			s.mu.Lock()
			s.errorMessage = line
			s.mu.Unlock()
		}
	}

	<-proc.done

	s.mu.Lock()
	if s.proc == proc {
		s.running = false
		s.state = domain.EngineStopped
		s.proc = nil
	}
	s.mu.Unlock()

	s.logger.Info("engine exited", zap.Error(proc.waitErr))
}

// engineEnv inherits the environment, defaulting DISPLAY for the spawned
// engine when the service runs without one (systemd unit, ssh session).
func (s *Supervisor) engineEnv() []string {
	env := os.Environ()
	for _, kv := range env {
		if strings.HasPrefix(kv, "DISPLAY=") {
			return env
		}
	}
	return append(env, "DISPLAY="+s.config.DisplayEnv)
}

func (s *Supervisor) setError(msg string) {
	s.mu.Lock()
	s.errorMessage = msg
	s.mu.Unlock()
}

func (s *Supervisor) clearState() {
	s.mu.Lock()
	s.running = false
	s.state = domain.EngineStopped
	s.connectedDevice = ""
	s.errorMessage = ""
	s.proc = nil
	s.mu.Unlock()
}

func (s *Supervisor) result(success bool, message string) domain.EngineResult {
	return domain.EngineResult{
		Success: success,
		Message: message,
		Status:  s.Status(),
	}
}
