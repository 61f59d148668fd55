package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
)

// Media wraps the media controller with result formatting for the API.
type Media struct {
	controller domain.MediaController
	logger     *zap.Logger
}

// NewMedia creates the media manager.
func NewMedia(controller domain.MediaController, logger *zap.Logger) *Media {
	return &Media{controller: controller, logger: logger}
}

// Play resumes playback.
func (m *Media) Play() domain.Result {
	if err := m.controller.Play(); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to play: %v", err)}
	}
	return domain.Result{Success: true, Message: "playing"}
}

// Pause pauses playback.
func (m *Media) Pause() domain.Result {
	if err := m.controller.Pause(); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to pause: %v", err)}
	}
	return domain.Result{Success: true, Message: "paused"}
}

// Stop stops playback.
func (m *Media) Stop() domain.Result {
	if err := m.controller.Stop(); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to stop: %v", err)}
	}
	return domain.Result{Success: true, Message: "stopped"}
}

// SetVolume sets output volume as a percentage.
func (m *Media) SetVolume(percent int) domain.Result {
	if err := m.controller.SetVolume(percent); err != nil {
		return domain.Result{Success: false, Message: fmt.Sprintf("failed to set volume: %v", err)}
	}
	m.logger.Debug("volume set", zap.Int("percent", percent))
	return domain.Result{Success: true, Message: fmt.Sprintf("volume set to %d%%", percent)}
}
