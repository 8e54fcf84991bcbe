package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthgrid/hearth-core/internal/infrastructure/config"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/logging"
)

// errSendBufferFull reports a slow consumer whose outbound buffer is
// exhausted. The message is dropped, not queued.
var errSendBufferFull = errors.New("api: send buffer full")

// upgrader configures the WebSocket upgrader for both endpoints.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Clients and controllers are not browsers; origin is meaningless.
		return true
	},
}

// socket is the shared transport half of a client or controller
// connection: a gorilla conn plus a buffered outbound channel drained
// by writePump. It satisfies relay.Conn so the registry can address it.
type socket struct {
	conn      *websocket.Conn
	send      chan []byte
	logger    *logging.Logger
	closeOnce sync.Once
}

func newSocket(conn *websocket.Conn, cfg config.WebSocketConfig, logger *logging.Logger) *socket {
	return &socket{
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		logger: logger,
	}
}

// Send queues payload for delivery. Non-blocking: a full buffer drops
// the payload and reports errSendBufferFull. Safe to call after close.
func (s *socket) Send(payload []byte) error {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel during disconnect
	}()

	select {
	case s.send <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// sendJSON marshals v and queues it. Errors are dropped; the wire types
// in this package always marshal.
func (s *socket) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	//nolint:errcheck // Fire and forget toward a possibly slow peer
	s.Send(data)
}

// close shuts the outbound channel and the underlying connection.
// Idempotent; both pumps and the supersession path may race to call it.
func (s *socket) close() {
	s.closeOnce.Do(func() {
		close(s.send)
		s.conn.Close()
	})
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with protocol-level pings.
func (s *socket) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			s.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads frames until the connection dies, resetting the read
// deadline on every frame and on protocol pongs, and hands each frame
// to handle.
func (s *socket) readLoop(cfg config.WebSocketConfig, handle func([]byte)) {
	s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			} else {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		s.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		handle(message)
	}
}
