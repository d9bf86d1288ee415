package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"alpaca/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Same-origin policy is not enforced; the app serves its own UI and
	// runs on a local machine, like the backend it fronts.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsChannel adapts one websocket connection to session.Channel.
// Writes are serialized under the mutex, which preserves emit order.
// After the connection drops every Emit is a silent no-op.
type wsChannel struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newWSChannel(conn *websocket.Conn, logger zerolog.Logger) *wsChannel {
	return &wsChannel{conn: conn, logger: logger}
}

var _ session.Channel = (*wsChannel)(nil)

func (c *wsChannel) Emit(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.conn.WriteJSON(outboundEvent{Event: event, Data: payload}); err != nil {
		c.logger.Debug().Err(err).Str("event", event).Msg("ws write failed, dropping connection")
		c.closed = true
		_ = c.conn.Close()
	}
}

func (c *wsChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.metrics.ActiveConnections.Inc()
	defer s.metrics.ActiveConnections.Dec()

	ch := newWSChannel(conn, s.logger)
	defer ch.Close()

	ch.Emit(session.EventConnected, session.StatusPayload{Status: "Connected to Alpaca AI"})

	for {
		var env wsEvent
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		switch env.Event {
		case "send_message":
			var req session.SendMessageRequest
			if err := json.Unmarshal(env.Data, &req); err != nil {
				ch.Emit(session.EventError, session.ErrorPayload{Error: "Invalid send_message payload"})
				continue
			}
			// One goroutine per exchange. The exchange context is the
			// server's, not the request's: a disconnect mid-stream must
			// not cancel the generation or its commit.
			go s.runner.Run(s.exchangeCtx, ch, req)
		default:
			ch.Emit(session.EventError, session.ErrorPayload{Error: "Unknown event: " + env.Event})
		}
	}
}
