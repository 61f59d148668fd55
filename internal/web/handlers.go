package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
	"github.com/carhud/headunit/internal/usecase"
)

// Control failures are expected operational states (engine not built,
// unknown key) and come back as 200 with success=false. Only malformed
// requests get 4xx.
type handlers struct {
	supervisor *usecase.Supervisor
	phone      *usecase.Phone
	bluetooth  *usecase.Bluetooth
	media      *usecase.Media
	logger     *zap.Logger
}

type startRequest struct {
	Fullscreen *bool `json:"fullscreen"`
	Width      int   `json:"width"`
	Height     int   `json:"height"`
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

type dialRequest struct {
	Number string `json:"number" binding:"required"`
}

type dtmfRequest struct {
	Digit string `json:"digit" binding:"required"`
}

type addressRequest struct {
	Address string `json:"address" binding:"required"`
}

type volumeRequest struct {
	Volume int `json:"volume"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// aggregateStatus is the one call the dashboard polls: everything the UI
// renders in a single round trip.
func (h *handlers) aggregateStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"carplay":   h.supervisor.Status(),
		"phone":     h.phone.Status(),
		"bluetooth": h.bluetooth.Devices(),
	})
}

func (h *handlers) carplayStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Status())
}

func (h *handlers) carplayStart(c *gin.Context) {
	var req startRequest
	// Empty body means default start
	_ = c.ShouldBindJSON(&req)

	fullscreen := true
	if req.Fullscreen != nil {
		fullscreen = *req.Fullscreen
	}

	var res domain.EngineResult
	if req.Width > 0 && req.Height > 0 {
		res = h.supervisor.Start(domain.EngineConfig{
			Fullscreen: fullscreen,
			Width:      req.Width,
			Height:     req.Height,
		})
	} else {
		res = h.supervisor.StartDefault(fullscreen)
	}

	if res.Success {
		engineStarts.Inc()
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) carplayStop(c *gin.Context) {
	res := h.supervisor.Stop()
	engineStops.Inc()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) carplayRestart(c *gin.Context) {
	res := h.supervisor.Restart()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) carplayKey(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "key is required"})
		return
	}
	res := h.supervisor.SendKey(req.Key)
	if res.Success {
		keyWrites.Inc()
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) phoneStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.phone.Status())
}

func (h *handlers) phoneCalls(c *gin.Context) {
	calls, err := h.phone.RecentCalls(50)
	if err != nil {
		h.logger.Warn("call history query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, domain.Result{Success: false, Message: "failed to read call history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (h *handlers) phoneAnswer(c *gin.Context) {
	res := h.phone.Answer()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) phoneHangup(c *gin.Context) {
	res := h.phone.Hangup()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) phoneDial(c *gin.Context) {
	var req dialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "number is required"})
		return
	}
	res := h.phone.Dial(req.Number)
	c.JSON(http.StatusOK, res)
}

func (h *handlers) phoneDTMF(c *gin.Context) {
	var req dtmfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "digit is required"})
		return
	}
	res := h.phone.SendDTMF(req.Digit)
	c.JSON(http.StatusOK, res)
}

func (h *handlers) bluetoothDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.bluetooth.Devices()})
}

func (h *handlers) bluetoothScan(c *gin.Context) {
	devices, err := h.bluetooth.Scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, domain.Result{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "devices": devices})
}

func (h *handlers) bluetoothConnect(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "address is required"})
		return
	}
	res := h.bluetooth.Connect(req.Address)
	c.JSON(http.StatusOK, res)
}

func (h *handlers) bluetoothDisconnect(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "address is required"})
		return
	}
	res := h.bluetooth.Disconnect(req.Address)
	c.JSON(http.StatusOK, res)
}

func (h *handlers) musicPlay(c *gin.Context) {
	res := h.media.Play()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) musicPause(c *gin.Context) {
	res := h.media.Pause()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) musicStop(c *gin.Context) {
	res := h.media.Stop()
	c.JSON(http.StatusOK, res)
}

func (h *handlers) musicVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.Result{Success: false, Message: "volume is required"})
		return
	}
	res := h.media.SetVolume(req.Volume)
	c.JSON(http.StatusOK, res)
}
