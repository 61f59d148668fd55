package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// PollSourceConfig holds poller timing. Tests shrink the intervals.
type PollSourceConfig struct {
	Interval      time.Duration // How often to query bluetoothctl
	ErrorInterval time.Duration // Backoff after a failed query
}

// DefaultPollSourceConfig returns default poller configuration.
func DefaultPollSourceConfig() PollSourceConfig {
	return PollSourceConfig{
		Interval:      2 * time.Second,
		ErrorInterval: 5 * time.Second,
	}
}

// PollEventSource is the pull-based phone event source, used when the
// system D-Bus is unavailable. It polls bluetoothctl for the connected
// device set and emits connect/disconnect transitions. Call state is
// invisible to this source; only the push source reports calls.
type PollEventSource struct {
	config  PollSourceConfig
	bt      domain.BluetoothController
	logger  *zap.Logger
	current *domain.BluetoothDevice
}

// NewPollEventSource creates a bluetoothctl polling source.
func NewPollEventSource(config PollSourceConfig, bt domain.BluetoothController, logger *zap.Logger) *PollEventSource {
	return &PollEventSource{config: config, bt: bt, logger: logger}
}

// Name identifies the source in logs and status output.
func (s *PollEventSource) Name() string {
	return "bluetoothctl-poll"
}

// Run polls until the context is canceled. Query failures back off and
// keep polling; they are not fatal.
func (s *PollEventSource) Run(ctx context.Context, events chan<- domain.PhoneEvent) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.pollOnce(ctx, events); err != nil {
				s.logger.Debug("bluetoothctl poll failed", zap.Error(err))
				ticker.Reset(s.config.ErrorInterval)
			} else {
				ticker.Reset(s.config.Interval)
			}
		}
	}
}

func (s *PollEventSource) pollOnce(ctx context.Context, events chan<- domain.PhoneEvent) error {
	devices, err := s.bt.ConnectedDevices()
	if err != nil {
		return err
	}

	if len(devices) > 0 {
		d := devices[0]
		if s.current == nil || s.current.Address != d.Address {
			s.current = &d
			s.emit(ctx, events, domain.PhoneEvent{
				Kind:    domain.EventDeviceConnected,
				Address: d.Address,
				Name:    d.Name,
			})
		}
		return nil
	}

	if s.current != nil {
		s.current = nil
		s.emit(ctx, events, domain.PhoneEvent{Kind: domain.EventDeviceDisconnected})
	}
	return nil
}

func (s *PollEventSource) emit(ctx context.Context, events chan<- domain.PhoneEvent, ev domain.PhoneEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// Ensure PollEventSource implements domain.PhoneEventSource.
var _ domain.PhoneEventSource = (*PollEventSource)(nil)
