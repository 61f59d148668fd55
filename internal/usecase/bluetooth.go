package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// defaultScanDuration is how long a discovery scan listens before the
// device list is read back.
const defaultScanDuration = 8 * time.Second

// Bluetooth manages audio device pairing on top of a BluetoothController.
// It is a thin layer: bluetoothctl holds the real state, so every query
// goes straight through instead of caching.
type Bluetooth struct {
	controller domain.BluetoothController
	logger     *zap.Logger
}

// NewBluetooth creates the bluetooth manager.
func NewBluetooth(controller domain.BluetoothController, logger *zap.Logger) *Bluetooth {
	return &Bluetooth{controller: controller, logger: logger}
}

// Scan runs a discovery scan and returns everything found.
func (b *Bluetooth) Scan(ctx context.Context) ([]domain.BluetoothDevice, error) {
	devices, err := b.controller.Scan(ctx, defaultScanDuration)
	if err != nil {
		return nil, fmt.Errorf("bluetooth scan failed: %w", err)
	}
	b.logger.Info("bluetooth scan complete", zap.Int("devices", len(devices)))
	return devices, nil
}

// Connect connects to a device by MAC address.
func (b *Bluetooth) Connect(address string) domain.Result {
	if address == "" {
		return domain.Result{Success: false, Message: "no device address provided"}
	}
	if err := b.controller.Connect(address); err != nil {
		b.logger.Warn("bluetooth connect failed", zap.String("address", address), zap.Error(err))
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to connect: %v", err)}
	}
	b.logger.Info("bluetooth device connected", zap.String("address", address))
	return domain.Result{Success: true, Message: "connected"}
}

// Disconnect drops the connection to a device by MAC address.
func (b *Bluetooth) Disconnect(address string) domain.Result {
	if address == "" {
		return domain.Result{Success: false, Message: "no device address provided"}
	}
	if err := b.controller.Disconnect(address); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to disconnect: %v", err)}
	}
	b.logger.Info("bluetooth device disconnected", zap.String("address", address))
	return domain.Result{Success: true, Message: "disconnected"}
}

// Devices lists currently connected devices. Errors degrade to an empty
// list so the UI has something to render.
func (b *Bluetooth) Devices() []domain.BluetoothDevice {
	devices, err := b.controller.ConnectedDevices()
	if err != nil {
		b.logger.Debug("connected device query failed", zap.Error(err))
		return []domain.BluetoothDevice{}
	}
	return devices
}
