package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parley/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 64 << 10
	sendQueueDepth = 64
)

// wsConn is one client socket. Events queued through Send are written by
// writePump; a full queue drops the event instead of stalling the hub.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{
		conn: c,
		send: make(chan []byte, sendQueueDepth),
		done: make(chan struct{}),
	}
}

func (c *wsConn) Send(ev domain.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return domain.Internal("encode event", err)
	}
	select {
	case <-c.done:
		return domain.TransportError("connection closed", nil)
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return domain.TransportError("send queue full", nil)
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.Log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	c := newWSConn(sock)
	rec, err := s.Hub.Connect(user, c)
	if err != nil {
		_ = sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"),
			time.Now().Add(writeWait))
		_ = sock.Close()
		return
	}
	log := s.Log.With().Str("user", user.String()).Str("conn", rec.ConnectionID.String()).Logger()

	go c.writePump(log)
	c.readPump(s, user, log)

	s.Hub.Disconnect(rec)
	_ = c.Close()
}

// readPump handles typing events until the socket fails.
func (c *wsConn) readPump(s *Server, user domain.UserID, log zerolog.Logger) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var ev domain.Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		switch ev.Name {
		case domain.EventStartTyping, domain.EventStopTyping:
			var t domain.TypingTarget
			if err := ev.Decode(&t); err != nil || t.ReceiverID == "" {
				log.Debug().Str("event", ev.Name).Msg("malformed typing event")
				continue
			}
			if ev.Name == domain.EventStartTyping {
				s.Hub.StartTyping(user, t.ReceiverID)
			} else {
				s.Hub.StopTyping(user, t.ReceiverID)
			}
		default:
			log.Debug().Str("event", ev.Name).Msg("ignoring client event")
		}
	}
}

func (c *wsConn) writePump(log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
