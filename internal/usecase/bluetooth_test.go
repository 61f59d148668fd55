package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

type fakeBTController struct {
	devices   []domain.BluetoothDevice
	connected []string
	err       error
}

func (f *fakeBTController) Scan(ctx context.Context, d time.Duration) ([]domain.BluetoothDevice, error) {
	return f.devices, f.err
}

func (f *fakeBTController) Connect(address string) error {
	if f.err != nil {
		return f.err
	}
	f.connected = append(f.connected, address)
	return nil
}

func (f *fakeBTController) Disconnect(address string) error { return f.err }

func (f *fakeBTController) ConnectedDevices() ([]domain.BluetoothDevice, error) {
	return f.devices, f.err
}

func TestBluetoothScanReturnsDevices(t *testing.T) {
	controller := &fakeBTController{devices: []domain.BluetoothDevice{
		{Address: "AA:BB:CC:DD:EE:FF", Name: "Pixel 8"},
	}}
	b := NewBluetooth(controller, zap.NewNop())

	devices, err := b.Scan(context.Background())

	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Pixel 8", devices[0].Name)
}

func TestBluetoothScanWrapsFailure(t *testing.T) {
	b := NewBluetooth(&fakeBTController{err: errors.New("bluetoothctl not found")}, zap.NewNop())

	_, err := b.Scan(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bluetooth scan failed")
}

func TestBluetoothConnectRequiresAddress(t *testing.T) {
	b := NewBluetooth(&fakeBTController{}, zap.NewNop())

	res := b.Connect("")

	assert.False(t, res.Success)
}

func TestBluetoothConnectReportsResult(t *testing.T) {
	controller := &fakeBTController{}
	b := NewBluetooth(controller, zap.NewNop())

	res := b.Connect("AA:BB:CC:DD:EE:FF")

	assert.True(t, res.Success)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, controller.connected)

	controller.err = errors.New("Connection failed")
	res = b.Connect("AA:BB:CC:DD:EE:FF")
	assert.False(t, res.Success)
}

func TestBluetoothDevicesDegradesToEmpty(t *testing.T) {
	b := NewBluetooth(&fakeBTController{err: errors.New("tool missing")}, zap.NewNop())

	assert.Empty(t, b.Devices())
	assert.NotNil(t, b.Devices())
}
