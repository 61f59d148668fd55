package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// historyLimit caps the recent-call list returned in status snapshots.
const historyLimit = 10

// Phone tracks the paired HFP device and any call in flight. State changes
// arrive as domain.PhoneEvents from whichever event source is active: the
// D-Bus push listener when the system bus is reachable, the bluetoothctl
// poller otherwise. Both feed the same apply function under one mutex, so
// the two implementations can never fight over state.
type Phone struct {
	source   domain.PhoneEventSource // push, preferred; may be nil
	fallback domain.PhoneEventSource // pull, always present
	calls    domain.CallController   // native oFono; may be nil
	dbusSend domain.CallController   // dbus-send shell-out fallback
	log      domain.CallLog
	logger   *zap.Logger

	mu          sync.Mutex
	address     string
	deviceName  string
	callState   domain.CallState
	callerID    string
	callerName  string
	activeCall  *domain.CallRecord
	listeners   map[int]func(domain.PhoneStatus)
	nextHandle  int
	sourceInUse string
}

// NewPhone creates the phone manager. source and calls may be nil when the
// system bus is unavailable; the fallbacks then carry the whole load.
func NewPhone(
	source domain.PhoneEventSource,
	fallback domain.PhoneEventSource,
	calls domain.CallController,
	dbusSend domain.CallController,
	log domain.CallLog,
	logger *zap.Logger,
) *Phone {
	return &Phone{
		source:    source,
		fallback:  fallback,
		calls:     calls,
		dbusSend:  dbusSend,
		log:       log,
		logger:    logger,
		callState: domain.CallIdle,
		listeners: make(map[int]func(domain.PhoneStatus)),
	}
}

// Run consumes phone events until the context is canceled. The push source
// runs first when available; if it fails mid-flight the poller takes over
// rather than leaving the phone screen frozen.
func (p *Phone) Run(ctx context.Context) error {
	events := make(chan domain.PhoneEvent, 16)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				p.apply(ev)
			}
		}
	}()

	if p.source != nil {
		p.setSource(p.source.Name())
		err := p.source.Run(ctx, events)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("push event source failed, falling back to polling", zap.Error(err))
	}

	p.setSource(p.fallback.Name())
	return p.fallback.Run(ctx, events)
}

// Subscribe registers a status listener and returns its unsubscribe func.
// Listeners are invoked outside the state lock.
func (p *Phone) Subscribe(fn func(domain.PhoneStatus)) func() {
	p.mu.Lock()
	handle := p.nextHandle
	p.nextHandle++
	p.listeners[handle] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, handle)
		p.mu.Unlock()
	}
}

// Status returns a snapshot including recent call history. A history read
// failure degrades to an empty list.
func (p *Phone) Status() domain.PhoneStatus {
	p.mu.Lock()
	st := domain.PhoneStatus{
		Connected:  p.address != "",
		Device:     p.address,
		DeviceName: p.deviceName,
		CallState:  p.callState,
		CallerID:   p.callerID,
		CallerName: p.callerName,
	}
	p.mu.Unlock()

	if recent, err := p.log.Recent(historyLimit); err == nil {
		st.RecentCalls = recent
	} else {
		p.logger.Debug("call history read failed", zap.Error(err))
		st.RecentCalls = []domain.CallRecord{}
	}
	return st
}

// RecentCalls returns up to limit entries of the persisted history.
func (p *Phone) RecentCalls(limit int) ([]domain.CallRecord, error) {
	return p.log.Recent(limit)
}

// Answer accepts the incoming call, preferring the native controller.
func (p *Phone) Answer() domain.Result {
	if err := p.callControl(domain.CallController.Answer); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to answer: %v", err)}
	}
	return domain.Result{Success: true, Message: "call answered"}
}

// Hangup ends the current call and reflects idle state immediately rather
// than waiting for the CallRemoved signal.
func (p *Phone) Hangup() domain.Result {
	if err := p.callControl(domain.CallController.Hangup); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to hang up: %v", err)}
	}
	p.apply(domain.PhoneEvent{Kind: domain.EventCallEnded})
	return domain.Result{Success: true, Message: "call ended"}
}

// Dial places an outgoing call.
func (p *Phone) Dial(number string) domain.Result {
	if number == "" {
		return domain.Result{Success: false, Message: "no number provided"}
	}
	if p.calls == nil {
		return domain.Result{Success: false, Message: "no phone service available"}
	}
	if err := p.calls.Dial(number); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to dial: %v", err)}
	}

	p.apply(domain.PhoneEvent{
		Kind:      domain.EventCallUpdate,
		CallState: domain.CallOutgoing,
		CallerID:  number,
	})
	return domain.Result{Success: true, Message: "dialing"}
}

// SendDTMF sends a tone during an active call.
func (p *Phone) SendDTMF(digit string) domain.Result {
	p.mu.Lock()
	active := p.callState == domain.CallActive
	p.mu.Unlock()
	if !active {
		return domain.Result{Success: false, Message: "no active call"}
	}
	if p.calls == nil {
		return domain.Result{Success: false, Message: "no phone service available"}
	}
	if err := p.calls.SendDTMF(digit); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to send tone: %v", err)}
	}
	return domain.Result{Success: true, Message: "tone sent"}
}

// callControl runs op against the native controller, then the dbus-send
// fallback when the native path is missing or errors.
func (p *Phone) callControl(op func(domain.CallController) error) error {
	if p.calls != nil {
		err := op(p.calls)
		if err == nil {
			return nil
		}
		p.logger.Debug("native call control failed, trying dbus-send", zap.Error(err))
	}
	if p.dbusSend == nil {
		return fmt.Errorf("no phone service available")
	}
	return op(p.dbusSend)
}

// apply folds one event into phone state. This is the single state-update
// path shared by both event sources and the optimistic updates above.
func (p *Phone) apply(ev domain.PhoneEvent) {
	p.mu.Lock()

	switch ev.Kind {
	case domain.EventDeviceConnected:
		p.address = ev.Address
		p.deviceName = ev.Name
		p.logger.Info("phone connected",
			zap.String("address", ev.Address),
			zap.String("name", ev.Name))

	case domain.EventDeviceDisconnected:
		p.address = ""
		p.deviceName = ""
		p.endCallLocked()
		p.logger.Info("phone disconnected")

	case domain.EventCallUpdate:
		if ev.CallState != "" {
			p.transitionCallLocked(ev.CallState)
		}
		if ev.CallerID != "" {
			p.callerID = ev.CallerID
			if p.activeCall != nil {
				p.activeCall.Number = ev.CallerID
			}
		}
		if ev.CallerName != "" {
			p.callerName = ev.CallerName
			if p.activeCall != nil {
				p.activeCall.Name = ev.CallerName
			}
		}

	case domain.EventCallEnded:
		p.endCallLocked()
	}

	snapshot := domain.PhoneStatus{
		Connected:  p.address != "",
		Device:     p.address,
		DeviceName: p.deviceName,
		CallState:  p.callState,
		CallerID:   p.callerID,
		CallerName: p.callerName,
	}
	listeners := make([]func(domain.PhoneStatus), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// transitionCallLocked updates call state and opens a history record on
// the idle -> ringing/dialing edge.
func (p *Phone) transitionCallLocked(state domain.CallState) {
	if state == domain.CallIdle {
		p.endCallLocked()
		return
	}

	if p.callState == domain.CallIdle && p.activeCall == nil {
		direction := domain.DirectionIncoming
		if state == domain.CallOutgoing {
			direction = domain.DirectionOutgoing
		}
		p.activeCall = &domain.CallRecord{
			ID:        uuid.NewString(),
			Direction: direction,
			StartedAt: time.Now(),
		}
	}
	p.callState = state
}

// endCallLocked resets call state and flushes the pending history record.
func (p *Phone) endCallLocked() {
	if p.activeCall != nil {
		record := *p.activeCall
		record.Number = p.callerID
		record.Name = p.callerName
		p.activeCall = nil
		// Append outside the lock would be nicer, but the encrypted store
		// is fast and apply is the only writer
		if err := p.log.Append(record); err != nil {
			p.logger.Warn("failed to persist call record", zap.Error(err))
		}
	}
	p.callState = domain.CallIdle
	p.callerID = ""
	p.callerName = ""
}

func (p *Phone) setSource(name string) {
	p.mu.Lock()
	p.sourceInUse = name
	p.mu.Unlock()
	p.logger.Info("phone event source active", zap.String("source", name))
}

// ActiveSource names the event source currently feeding state.
func (p *Phone) ActiveSource() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceInUse
}
