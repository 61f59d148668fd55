package infra

import (
	"strings"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// Vendor ID prefixes of known Carlinkit-style dongles as they appear in
// lsusb output. 1314:1520 is the common CPC200 family; the others are variants.
var dongleVendorPrefixes = []string{"1314:", "1234:", "154b:"}

// USBProberImpl implements domain.USBProber by shelling out to lsusb.
type USBProberImpl struct {
	runner domain.CommandRunner
	logger *zap.Logger
}

// NewUSBProber creates a prober using the given command runner.
func NewUSBProber(runner domain.CommandRunner, logger *zap.Logger) domain.USBProber {
	return &USBProberImpl{runner: runner, logger: logger}
}

// DongleDetected enumerates the USB bus and matches against the vendor
// allow-list. Any failure reads as "not detected"; callers poll.
func (p *USBProberImpl) DongleDetected() bool {
	out, err := p.runner.Output("lsusb")
	if err != nil {
		p.logger.Debug("lsusb probe failed", zap.Error(err))
		return false
	}

	listing := string(out)
	for _, prefix := range dongleVendorPrefixes {
		if strings.Contains(listing, prefix) {
			return true
		}
	}
	return false
}

// Ensure USBProberImpl implements domain.USBProber.
var _ domain.USBProber = (*USBProberImpl)(nil)
