package infra

import (
	"fmt"
	"strconv"

	"github.com/carhud/headunit/internal/domain"
)

// PlayerctlMedia implements domain.MediaController by shelling out to
// playerctl (MPRIS) for transport control and amixer for output volume.
// The BlueZ MPRIS bridge exposes the connected phone as a player, so the
// same commands cover Bluetooth audio and local playback.
type PlayerctlMedia struct {
	runner domain.CommandRunner
	mixer  string // amixer control name, usually "Master"
}

// NewPlayerctlMedia creates a playerctl/amixer-backed media controller.
func NewPlayerctlMedia(runner domain.CommandRunner) *PlayerctlMedia {
	return &PlayerctlMedia{runner: runner, mixer: "Master"}
}

// Play resumes playback on the active player.
func (m *PlayerctlMedia) Play() error {
	if err := m.runner.Run("playerctl", "play"); err != nil {
		return fmt.Errorf("playerctl play failed: %w", err)
	}
	return nil
}

// Pause pauses playback on the active player.
func (m *PlayerctlMedia) Pause() error {
	if err := m.runner.Run("playerctl", "pause"); err != nil {
		return fmt.Errorf("playerctl pause failed: %w", err)
	}
	return nil
}

// Stop stops playback on the active player.
func (m *PlayerctlMedia) Stop() error {
	if err := m.runner.Run("playerctl", "stop"); err != nil {
		return fmt.Errorf("playerctl stop failed: %w", err)
	}
	return nil
}

// SetVolume sets output volume as a percentage, clamped to 0-100.
func (m *PlayerctlMedia) SetVolume(percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	arg := strconv.Itoa(percent) + "%"
	if err := m.runner.Run("amixer", "set", m.mixer, arg); err != nil {
		return fmt.Errorf("amixer set failed: %w", err)
	}
	return nil
}

// Ensure PlayerctlMedia implements domain.MediaController.
var _ domain.MediaController = (*PlayerctlMedia)(nil)
