package infra

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// BlueZ / oFono interface names as they appear on the system bus.
const (
	blueZDevice          = "org.bluez.Device1"
	ofonoVoiceCall       = "org.ofono.VoiceCall"
	ofonoVoiceCallMgr    = "org.ofono.VoiceCallManager"
	dbusPropertiesSignal = "org.freedesktop.DBus.Properties"
)

// oFono call states mapped onto our call state enum. Unknown states pass
// through unchanged so new oFono values surface instead of vanishing.
var ofonoStateMap = map[string]domain.CallState{
	"incoming":     domain.CallIncoming,
	"waiting":      domain.CallIncoming,
	"dialing":      domain.CallOutgoing,
	"alerting":     domain.CallOutgoing,
	"active":       domain.CallActive,
	"held":         domain.CallHeld,
	"disconnected": domain.CallIdle,
}

// MapOfonoCallState converts an oFono state string to a domain CallState.
func MapOfonoCallState(state string) domain.CallState {
	if mapped, ok := ofonoStateMap[state]; ok {
		return mapped
	}
	return domain.CallState(state)
}

// DBusEventSource is the push-based phone event source. It subscribes to
// BlueZ device property changes and oFono call signals on the system bus
// and translates them into domain.PhoneEvents. Preferred over polling
// whenever the system bus is reachable.
type DBusEventSource struct {
	conn   *dbus.Conn
	logger *zap.Logger
}

// NewDBusEventSource connects to the system bus. A connection error means
// the platform has no usable bus; callers fall back to the poll source.
func NewDBusEventSource(logger *zap.Logger) (*DBusEventSource, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus unavailable: %w", err)
	}
	return &DBusEventSource{conn: conn, logger: logger}, nil
}

// Name identifies the source in logs and status output.
func (s *DBusEventSource) Name() string {
	return "dbus"
}

// Run subscribes to the relevant signals and translates until the context
// is canceled. Signal handling failures are logged and skipped; a broken
// subscription ends the source so the manager can fall back.
func (s *DBusEventSource) Run(ctx context.Context, events chan<- domain.PhoneEvent) error {
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(dbusPropertiesSignal), dbus.WithMatchMember("PropertiesChanged")},
		{dbus.WithMatchInterface(ofonoVoiceCallMgr), dbus.WithMatchMember("CallAdded")},
		{dbus.WithMatchInterface(ofonoVoiceCallMgr), dbus.WithMatchMember("CallRemoved")},
	}
	for _, m := range matches {
		if err := s.conn.AddMatchSignal(m...); err != nil {
			return fmt.Errorf("failed to add signal match: %w", err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	s.logger.Info("dbus phone listener registered")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("dbus signal stream closed")
			}
			s.handleSignal(ctx, sig, events)
		}
	}
}

func (s *DBusEventSource) handleSignal(ctx context.Context, sig *dbus.Signal, events chan<- domain.PhoneEvent) {
	switch sig.Name {
	case dbusPropertiesSignal + ".PropertiesChanged":
		s.handlePropertiesChanged(ctx, sig, events)
	case ofonoVoiceCallMgr + ".CallAdded":
		s.handleCallAdded(ctx, sig, events)
	case ofonoVoiceCallMgr + ".CallRemoved":
		s.emit(ctx, events, domain.PhoneEvent{Kind: domain.EventCallEnded})
	}
}

// handlePropertiesChanged covers both BlueZ device connect/disconnect and
// oFono in-call property updates.
func (s *DBusEventSource) handlePropertiesChanged(ctx context.Context, sig *dbus.Signal, events chan<- domain.PhoneEvent) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch iface {
	case blueZDevice:
		connected, has := changed["Connected"]
		if !has {
			return
		}
		if isConnected, _ := connected.Value().(bool); isConnected {
			addr, name := s.deviceIdentity(sig.Path)
			s.emit(ctx, events, domain.PhoneEvent{
				Kind:    domain.EventDeviceConnected,
				Address: addr,
				Name:    name,
			})
		} else {
			s.emit(ctx, events, domain.PhoneEvent{Kind: domain.EventDeviceDisconnected})
		}

	case ofonoVoiceCall:
		ev := domain.PhoneEvent{Kind: domain.EventCallUpdate}
		if v, has := changed["State"]; has {
			state, _ := v.Value().(string)
			ev.CallState = MapOfonoCallState(state)
		}
		if v, has := changed["LineIdentification"]; has {
			ev.CallerID, _ = v.Value().(string)
		}
		if v, has := changed["Name"]; has {
			ev.CallerName, _ = v.Value().(string)
		}
		s.emit(ctx, events, ev)
	}
}

// handleCallAdded reports a new incoming/outgoing call with its initial state.
func (s *DBusEventSource) handleCallAdded(ctx context.Context, sig *dbus.Signal, events chan<- domain.PhoneEvent) {
	if len(sig.Body) < 2 {
		return
	}
	props, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	ev := domain.PhoneEvent{Kind: domain.EventCallUpdate}
	if v, has := props["State"]; has {
		state, _ := v.Value().(string)
		ev.CallState = MapOfonoCallState(state)
	}
	if v, has := props["LineIdentification"]; has {
		ev.CallerID, _ = v.Value().(string)
	}
	if v, has := props["Name"]; has {
		ev.CallerName, _ = v.Value().(string)
	}
	s.emit(ctx, events, ev)
}

// deviceIdentity resolves a BlueZ device path to its address and name.
// Failures degrade to empty strings; the poller will fill them in later.
func (s *DBusEventSource) deviceIdentity(path dbus.ObjectPath) (addr, name string) {
	obj := s.conn.Object("org.bluez", path)

	if v, err := obj.GetProperty(blueZDevice + ".Address"); err == nil {
		addr, _ = v.Value().(string)
	} else {
		s.logger.Debug("failed to read device address", zap.String("path", string(path)), zap.Error(err))
	}
	if v, err := obj.GetProperty(blueZDevice + ".Name"); err == nil {
		name, _ = v.Value().(string)
	}
	return addr, name
}

func (s *DBusEventSource) emit(ctx context.Context, events chan<- domain.PhoneEvent, ev domain.PhoneEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// Ensure DBusEventSource implements domain.PhoneEventSource.
var _ domain.PhoneEventSource = (*DBusEventSource)(nil)
