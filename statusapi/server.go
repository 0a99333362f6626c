package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"listen/log"
	"listen/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Controller interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	Toggle() (bool, error)
}

// Server exposes the controller on a local HTTP address.
type Server struct {
	ctl  Controller
	echo *echo.Echo
}

type toggleResponse struct {
	Changed bool             `json:"changed"`
	Status  session.Snapshot `json:"status"`
	Error   string           `json:"error,omitempty"`
}

func New(ctl Controller) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{ctl: ctl, echo: e}
	e.GET("/status", s.status)
	e.POST("/toggle", s.toggle)
	e.GET("/ws", s.stream)
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.echo.Start(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctl.Snapshot())
}

func (s *Server) toggle(c echo.Context) error {
	changed, err := s.ctl.Toggle()
	resp := toggleResponse{Changed: changed, Status: s.ctl.Snapshot()}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// stream sends every snapshot as a JSON text message until the client
// goes away.
func (s *Server) stream(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	updates, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go readPump(ws, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case snap := <-updates:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, snap.JSON()); err != nil {
				log.Warnf("status stream write failed: %v", err)
				return nil
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

// readPump drains client frames so pongs and close messages are handled.
func readPump(ws *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
