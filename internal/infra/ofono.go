package infra

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// OfonoCallController implements domain.CallController against oFono on
// the system bus. It is stateless: the active call path is looked up via
// GetCalls on every command, so a restart mid-call still works.
type OfonoCallController struct {
	conn   *dbus.Conn
	logger *zap.Logger
}

// NewOfonoCallController connects to the system bus for call control.
func NewOfonoCallController(logger *zap.Logger) (*OfonoCallController, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus unavailable: %w", err)
	}
	return &OfonoCallController{conn: conn, logger: logger}, nil
}

type ofonoObject struct {
	Path  dbus.ObjectPath
	Props map[string]dbus.Variant
}

// modems lists oFono modems (one per paired HFP phone).
func (c *OfonoCallController) modems() ([]ofonoObject, error) {
	var modems []ofonoObject
	obj := c.conn.Object("org.ofono", "/")
	if err := obj.Call("org.ofono.Manager.GetModems", 0).Store(&modems); err != nil {
		return nil, fmt.Errorf("failed to list modems: %w", err)
	}
	return modems, nil
}

// activeCall returns the first call object on any modem.
func (c *OfonoCallController) activeCall() (dbus.ObjectPath, error) {
	modems, err := c.modems()
	if err != nil {
		return "", err
	}
	for _, m := range modems {
		var calls []ofonoObject
		obj := c.conn.Object("org.ofono", m.Path)
		if err := obj.Call(ofonoVoiceCallMgr+".GetCalls", 0).Store(&calls); err != nil {
			c.logger.Debug("GetCalls failed", zap.String("modem", string(m.Path)), zap.Error(err))
			continue
		}
		if len(calls) > 0 {
			return calls[0].Path, nil
		}
	}
	return "", fmt.Errorf("no call in progress")
}

// Answer accepts the incoming call.
func (c *OfonoCallController) Answer() error {
	path, err := c.activeCall()
	if err != nil {
		return err
	}
	return c.conn.Object("org.ofono", path).Call(ofonoVoiceCall+".Answer", 0).Err
}

// Hangup ends the current call.
func (c *OfonoCallController) Hangup() error {
	path, err := c.activeCall()
	if err != nil {
		return err
	}
	return c.conn.Object("org.ofono", path).Call(ofonoVoiceCall+".Hangup", 0).Err
}

// Dial places a call on the first modem. The number is sanitized to
// digits plus +*# before submission.
func (c *OfonoCallController) Dial(number string) error {
	cleaned := SanitizeNumber(number)
	if cleaned == "" {
		return fmt.Errorf("no number provided")
	}

	modems, err := c.modems()
	if err != nil {
		return err
	}
	if len(modems) == 0 {
		return fmt.Errorf("no phone service available")
	}

	obj := c.conn.Object("org.ofono", modems[0].Path)
	var callPath dbus.ObjectPath
	// Second argument is CLIR hide-callerid: "" = network default
	if err := obj.Call(ofonoVoiceCallMgr+".Dial", 0, cleaned, "").Store(&callPath); err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	return nil
}

// SendDTMF sends tones during an active call.
func (c *OfonoCallController) SendDTMF(digit string) error {
	modems, err := c.modems()
	if err != nil {
		return err
	}
	if len(modems) == 0 {
		return fmt.Errorf("no phone service available")
	}
	obj := c.conn.Object("org.ofono", modems[0].Path)
	return obj.Call(ofonoVoiceCallMgr+".SendTones", 0, digit).Err
}

// SanitizeNumber strips everything but digits and +*# from a dial string.
func SanitizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if (r >= '0' && r <= '9') || r == '+' || r == '*' || r == '#' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Ensure OfonoCallController implements domain.CallController.
var _ domain.CallController = (*OfonoCallController)(nil)

// DbusSendCallController is the shell-out fallback used when the native
// bus connection cannot be established. Answer/Hangup go through
// dbus-send; dialing needs a tracked modem and is not supported here.
type DbusSendCallController struct {
	runner domain.CommandRunner
}

// NewDbusSendCallController creates the dbus-send fallback controller.
func NewDbusSendCallController(runner domain.CommandRunner) *DbusSendCallController {
	return &DbusSendCallController{runner: runner}
}

// Answer accepts the incoming call via dbus-send.
func (c *DbusSendCallController) Answer() error {
	return c.runner.Run("dbus-send", "--system", "--print-reply",
		"--dest=org.ofono", "/", ofonoVoiceCall+".Answer")
}

// Hangup ends the current call via dbus-send.
func (c *DbusSendCallController) Hangup() error {
	return c.runner.Run("dbus-send", "--system", "--print-reply",
		"--dest=org.ofono", "/", ofonoVoiceCall+".Hangup")
}

// Dial is unsupported without a native bus connection.
func (c *DbusSendCallController) Dial(number string) error {
	return fmt.Errorf("no phone service available")
}

// SendDTMF is unsupported without a native bus connection.
func (c *DbusSendCallController) SendDTMF(digit string) error {
	return fmt.Errorf("no phone service available")
}

// Ensure DbusSendCallController implements domain.CallController.
var _ domain.CallController = (*DbusSendCallController)(nil)
