package infra

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/carhud/headunit/internal/domain"
)

// ErrPipeUnavailable is returned when the FIFO is missing or has no reader.
var ErrPipeUnavailable = errors.New("key pipe not available")

// FIFOKeyPipe implements domain.KeyPipe over a filesystem FIFO owned by
// the engine. Writes are fire-and-forget; nothing is ever read back.
type FIFOKeyPipe struct {
	path string
}

// NewFIFOKeyPipe creates a key pipe writer for the given FIFO path.
func NewFIFOKeyPipe(path string) *FIFOKeyPipe {
	return &FIFOKeyPipe{path: path}
}

// Path returns the FIFO path.
func (p *FIFOKeyPipe) Path() string {
	return p.path
}

// Available reports whether the FIFO exists on disk.
func (p *FIFOKeyPipe) Available() bool {
	info, err := os.Stat(p.path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeNamedPipe != 0
}

// Write sends raw key codes to the FIFO. The pipe is opened non-blocking:
// opening a FIFO write-only with no reader attached fails with ENXIO, which
// maps to ErrPipeUnavailable instead of blocking the caller indefinitely.
func (p *FIFOKeyPipe) Write(codes []byte) error {
	if !p.Available() {
		return ErrPipeUnavailable
	}

	f, err := os.OpenFile(p.path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, syscall.ENXIO) {
			return ErrPipeUnavailable
		}
		return fmt.Errorf("failed to open key pipe: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(codes); err != nil {
		return fmt.Errorf("failed to write key pipe: %w", err)
	}
	return nil
}

// Ensure FIFOKeyPipe implements domain.KeyPipe.
var _ domain.KeyPipe = (*FIFOKeyPipe)(nil)
