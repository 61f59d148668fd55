// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// EngineState tracks the receiver engine lifecycle as observed from its output.
type EngineState string

const (
	EngineStopped   EngineState = "stopped"
	EngineRunning   EngineState = "running"
	EngineConnected EngineState = "connected"
	EngineWaiting   EngineState = "waiting"
)

// EngineConfig is the per-start configuration rendered into the engine
// settings file. It is constructed fresh for every start and discarded
// once the file is written.
type EngineConfig struct {
	Fullscreen bool
	Width      int
	Height     int
}

// EngineStatus is a point-in-time snapshot of the supervised engine.
// Every field degrades to false/empty when the underlying query fails.
type EngineStatus struct {
	Running         bool        `json:"running"`
	Built           bool        `json:"built"`
	State           EngineState `json:"status"`
	ConnectedDevice string      `json:"connected_device,omitempty"`
	DongleDetected  bool        `json:"dongle_detected"`
	Error           string      `json:"error,omitempty"`
	ExecutablePath  string      `json:"executable_path"`
	SettingsPath    string      `json:"settings_path"`
}

// Result is the uniform outcome of a control operation.
// Managers never propagate faults to callers; they convert them here.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EngineResult couples a control outcome with a fresh status snapshot,
// matching the contract the web layer exposes.
type EngineResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Status  EngineStatus `json:"status"`
}

// CallState tracks the HFP call lifecycle.
type CallState string

const (
	CallIdle     CallState = "idle"
	CallIncoming CallState = "incoming"
	CallOutgoing CallState = "outgoing"
	CallActive   CallState = "active"
	CallHeld     CallState = "held"
)

// CallDirection records whether a logged call was placed or received.
type CallDirection string

const (
	DirectionIncoming CallDirection = "incoming"
	DirectionOutgoing CallDirection = "outgoing"
)

// CallRecord is one entry in the persisted call history.
type CallRecord struct {
	ID        string        `json:"id"`
	Number    string        `json:"number"`
	Name      string        `json:"name,omitempty"`
	Direction CallDirection `json:"direction"`
	StartedAt time.Time     `json:"started_at"`
}

// PhoneStatus is a snapshot of the paired phone and any call in flight.
type PhoneStatus struct {
	Connected   bool         `json:"connected"`
	Device      string       `json:"device,omitempty"`
	DeviceName  string       `json:"device_name,omitempty"`
	CallState   CallState    `json:"call_state"`
	CallerID    string       `json:"caller_id,omitempty"`
	CallerName  string       `json:"caller_name,omitempty"`
	RecentCalls []CallRecord `json:"recent_calls"`
}

// PhoneEventKind discriminates events emitted by a PhoneEventSource.
type PhoneEventKind string

const (
	EventDeviceConnected    PhoneEventKind = "device_connected"
	EventDeviceDisconnected PhoneEventKind = "device_disconnected"
	EventCallUpdate         PhoneEventKind = "call_update"
	EventCallEnded          PhoneEventKind = "call_ended"
)

// PhoneEvent is the common currency between the push (D-Bus) and pull
// (bluetoothctl poll) event sources and the phone manager.
type PhoneEvent struct {
	Kind       PhoneEventKind
	Address    string
	Name       string
	CallState  CallState
	CallerID   string
	CallerName string
}

// BluetoothDevice is one entry parsed from bluetoothctl output.
type BluetoothDevice struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}
