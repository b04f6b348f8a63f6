package relay

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/domain"
)

const (
	wsWriteWait   = 10 * time.Second
	eventsBacklog = 64
)

// Dial opens the event stream for the current session.
func (c *HTTP) Dial(ctx context.Context) (domain.Transport, error) {
	tok := c.Token()
	if tok == "" {
		return nil, domain.Unauthorized("not logged in")
	}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+tok)
	return DialWS(ctx, wsURL(c.base)+"/ws", hdr)
}

// WS is a Transport over one gorilla WebSocket connection.
type WS struct {
	conn   *websocket.Conn
	events chan domain.Event

	wmu  sync.Mutex
	once sync.Once
	done chan struct{}
}

var _ domain.Transport = (*WS)(nil)

// DialWS connects to url and starts reading events.
func DialWS(ctx context.Context, url string, hdr http.Header) (*WS, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, hdr)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, domain.Unauthorized("websocket: " + resp.Status)
		}
		return nil, domain.TransportError("websocket dial", err)
	}
	ws := &WS{
		conn:   conn,
		events: make(chan domain.Event, eventsBacklog),
		done:   make(chan struct{}),
	}
	go ws.readLoop()
	return ws, nil
}

func (w *WS) readLoop() {
	defer close(w.events)
	for {
		var ev domain.Event
		if err := w.conn.ReadJSON(&ev); err != nil {
			_ = w.Close()
			return
		}
		select {
		case w.events <- ev:
		case <-w.done:
			return
		}
	}
}

// Events yields server events until the connection ends.
func (w *WS) Events() <-chan domain.Event { return w.events }

// Emit sends one event to the server.
func (w *WS) Emit(ctx context.Context, name string, payload any) error {
	select {
	case <-w.done:
		return domain.TransportError("websocket closed", nil)
	case <-ctx.Done():
		return domain.TransportError("emit "+name, ctx.Err())
	default:
	}
	ev, err := domain.NewEvent(name, payload)
	if err != nil {
		return domain.Internal("encode event", err)
	}
	deadline := time.Now().Add(wsWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	_ = w.conn.SetWriteDeadline(deadline)
	if err := w.conn.WriteJSON(ev); err != nil {
		return domain.TransportError("emit "+name, err)
	}
	return nil
}

// Close ends the connection. Events is closed once the reader exits.
func (w *WS) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wmu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.wmu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
