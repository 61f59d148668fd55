package infra

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// Lines look like: "Device AA:BB:CC:DD:EE:FF Pixel 9"
var deviceLineRe = regexp.MustCompile(`^Device\s+([0-9A-Fa-f:]{17})\s+(.+)$`)

// BluetoothCtl implements domain.BluetoothController by shelling out to
// bluetoothctl. No state is kept here; callers mirror what the tool reports.
type BluetoothCtl struct {
	runner domain.CommandRunner
	logger *zap.Logger
}

// NewBluetoothCtl creates a bluetoothctl-backed controller.
func NewBluetoothCtl(runner domain.CommandRunner, logger *zap.Logger) *BluetoothCtl {
	return &BluetoothCtl{runner: runner, logger: logger}
}

// Scan runs discovery for the given duration, then lists known devices.
// bluetoothctl keeps discovered devices in its cache, so scan-then-list
// is the reliable sequence.
func (b *BluetoothCtl) Scan(ctx context.Context, duration time.Duration) ([]domain.BluetoothDevice, error) {
	seconds := int(duration.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	// scan on blocks for the timeout; the context guards the outer request
	done := make(chan error, 1)
	go func() {
		done <- b.runner.Run("bluetoothctl", "--timeout", strconv.Itoa(seconds), "scan", "on")
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			b.logger.Warn("bluetooth scan failed", zap.Error(err))
			return nil, fmt.Errorf("bluetooth scan failed: %w", err)
		}
	}

	out, err := b.runner.Output("bluetoothctl", "devices")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return parseDeviceList(out), nil
}

// Connect connects to a device by MAC address.
// bluetoothctl exits 0 on success but some builds report success only in
// stdout, so both are checked.
func (b *BluetoothCtl) Connect(address string) error {
	out, err := b.runner.Output("bluetoothctl", "connect", address)
	if err == nil || strings.Contains(string(out), "Connection successful") {
		return nil
	}
	return fmt.Errorf("failed to connect %s: %w", address, err)
}

// Disconnect drops the connection to a device by MAC address.
func (b *BluetoothCtl) Disconnect(address string) error {
	if err := b.runner.Run("bluetoothctl", "disconnect", address); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", address, err)
	}
	return nil
}

// ConnectedDevices lists currently connected devices.
func (b *BluetoothCtl) ConnectedDevices() ([]domain.BluetoothDevice, error) {
	out, err := b.runner.Output("bluetoothctl", "devices", "Connected")
	if err != nil {
		return nil, fmt.Errorf("failed to list connected devices: %w", err)
	}
	return parseDeviceList(out), nil
}

// parseDeviceList extracts devices from bluetoothctl line output.
func parseDeviceList(out []byte) []domain.BluetoothDevice {
	var devices []domain.BluetoothDevice
	for _, line := range strings.Split(string(out), "\n") {
		m := deviceLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		devices = append(devices, domain.BluetoothDevice{
			Address: strings.ToUpper(m[1]),
			Name:    strings.TrimSpace(m[2]),
		})
	}
	return devices
}

// Ensure BluetoothCtl implements domain.BluetoothController.
var _ domain.BluetoothController = (*BluetoothCtl)(nil)
