package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/carhud/headunit/internal/domain"
	"github.com/carhud/headunit/internal/usecase"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// phoneStream pushes phone status snapshots to WebSocket clients as they
// happen, replacing the dashboard's need to poll /api/phone/status.
type phoneStream struct {
	phone    *usecase.Phone
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func newPhoneStream(phone *usecase.Phone, logger *zap.Logger) *phoneStream {
	return &phoneStream{
		phone: phone,
		upgrader: websocket.Upgrader{
			// Same trust model as the CORS config: the car network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (s *phoneStream) handle(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Buffered so a slow client drops updates instead of blocking the
	// phone manager's apply path
	updates := make(chan domain.PhoneStatus, 8)
	unsubscribe := s.phone.Subscribe(func(st domain.PhoneStatus) {
		select {
		case updates <- st:
		default:
		}
	})
	defer unsubscribe()

	// Reader goroutine: we never expect client messages, but reading is
	// required to process close frames
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeStatus(conn, s.phone.Status()); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case st := <-updates:
			if err := s.writeStatus(conn, st); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *phoneStream) writeStatus(conn *websocket.Conn, st domain.PhoneStatus) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(st)
}
