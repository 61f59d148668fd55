// Package web exposes the control API consumed by the dashboard UI.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/usecase"
)

// shutdownTimeout bounds how long in-flight requests may finish during
// graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Deps are the managers the API fronts.
type Deps struct {
	Supervisor *usecase.Supervisor
	Phone      *usecase.Phone
	Bluetooth  *usecase.Bluetooth
	Media      *usecase.Media
	Logger     *zap.Logger
}

// Server is the HTTP control surface. All state lives in the managers;
// handlers only translate between JSON and manager calls.
type Server struct {
	httpSrv *http.Server
	logger  *zap.Logger
}

// NewServer builds the router and wires all routes.
func NewServer(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())

	// The dashboard is served from the same device but may also be opened
	// from a phone browser on the car WiFi
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	router.Use(cors.New(corsCfg))

	h := &handlers{
		supervisor: deps.Supervisor,
		phone:      deps.Phone,
		bluetooth:  deps.Bluetooth,
		media:      deps.Media,
		logger:     deps.Logger,
	}
	ws := newPhoneStream(deps.Phone, deps.Logger)

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/status", h.aggregateStatus)

		carplay := api.Group("/carplay")
		carplay.GET("/status", h.carplayStatus)
		carplay.POST("/start", h.carplayStart)
		carplay.POST("/stop", h.carplayStop)
		carplay.POST("/restart", h.carplayRestart)
		carplay.POST("/key", h.carplayKey)

		phone := api.Group("/phone")
		phone.GET("/status", h.phoneStatus)
		phone.GET("/calls", h.phoneCalls)
		phone.POST("/answer", h.phoneAnswer)
		phone.POST("/hangup", h.phoneHangup)
		phone.POST("/dial", h.phoneDial)
		phone.POST("/dtmf", h.phoneDTMF)

		bt := api.Group("/bluetooth")
		bt.GET("/devices", h.bluetoothDevices)
		bt.POST("/scan", h.bluetoothScan)
		bt.POST("/connect", h.bluetoothConnect)
		bt.POST("/disconnect", h.bluetoothDisconnect)

		music := api.Group("/music")
		music.POST("/play", h.musicPlay)
		music.POST("/pause", h.musicPause)
		music.POST("/stop", h.musicStop)
		music.POST("/volume", h.musicVolume)
	}

	router.GET("/ws/phone", ws.handle)

	return &Server{
		httpSrv: &http.Server{Addr: addr, Handler: router},
		logger:  deps.Logger,
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
