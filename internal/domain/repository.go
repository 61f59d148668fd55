package domain

import (
	"context"
	"time"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// Run executes a command and waits for it to complete.
	Run(name string, args ...string) error

	// Output executes a command and returns its stdout.
	Output(name string, args ...string) ([]byte, error)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Terminate sends SIGTERM to a process by PID.
	Terminate(pid int) error

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// USBProber reports whether a recognized CarPlay dongle is on the bus.
// Purely advisory: any probe failure reads as "not detected".
type USBProber interface {
	DongleDetected() bool
}

// SettingsWriter renders an EngineConfig into the settings file the
// engine binary consumes. The file is rewritten wholesale on every start.
type SettingsWriter interface {
	Write(cfg EngineConfig) error
	Path() string
}

// KeyPipe is the write side of the named pipe the engine listens on.
// The supervisor never reads from it.
type KeyPipe interface {
	// Available reports whether the FIFO exists on disk.
	Available() bool

	// Write sends raw key codes to the pipe. Fails fast when no reader
	// is attached instead of blocking on a stale pipe.
	Write(codes []byte) error

	Path() string
}

// BuildChecker reports whether the engine binary is present on disk.
type BuildChecker interface {
	Built() bool
}

// PhoneEventSource feeds phone state changes into the phone manager.
// Implementations: push (D-Bus signals) and pull (bluetoothctl polling).
// Run blocks until the context is canceled or the source fails.
type PhoneEventSource interface {
	Name() string
	Run(ctx context.Context, events chan<- PhoneEvent) error
}

// CallController issues HFP call commands to the paired phone.
type CallController interface {
	Answer() error
	Hangup() error
	Dial(number string) error
	SendDTMF(digit string) error
}

// CallLog provides persistent call history.
// Implementation: SQLCipher encrypted SQLite database.
type CallLog interface {
	Append(record CallRecord) error
	Recent(limit int) ([]CallRecord, error)
	Close() error
}

// KeyProvider abstracts the source of the call log encryption key.
type KeyProvider interface {
	GetKey() ([]byte, error)
	StoreKey(key []byte) error
	KeyExists() bool
}

// BluetoothController wraps bluetoothctl for audio device management.
type BluetoothController interface {
	// Scan discovers nearby devices, blocking for the given duration.
	Scan(ctx context.Context, duration time.Duration) ([]BluetoothDevice, error)

	// Connect pairs with and connects to a device by MAC address.
	Connect(address string) error

	// Disconnect drops the connection to a device by MAC address.
	Disconnect(address string) error

	// ConnectedDevices lists currently connected devices.
	ConnectedDevices() ([]BluetoothDevice, error)
}

// MediaController drives playback on the connected audio source.
type MediaController interface {
	Play() error
	Pause() error
	Stop() error

	// SetVolume sets output volume as a percentage (0-100).
	SetVolume(percent int) error
}

// UnitManager handles the systemd unit that auto-starts the head unit.
type UnitManager interface {
	// Install writes and enables the unit for the given executable.
	Install(execPath string) error

	// Uninstall disables and removes the unit.
	Uninstall() error

	// IsInstalled checks if the unit file is present.
	IsInstalled() bool

	// UnitPath returns the unit file path.
	UnitPath() string
}
