package presence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parley/internal/domain"
)

// Conn is one live connection as seen by the hub. Send must not block.
type Conn interface {
	Send(ev domain.Event) error
	Close() error
}

// Metrics receives presence gauges and drop counts.
type Metrics interface {
	SetOnline(users, connections int)
	EventDropped(event string)
}

type nopMetrics struct{}

func (nopMetrics) SetOnline(int, int)  {}
func (nopMetrics) EventDropped(string) {}

// Hub is the presence registry of one server process.
type Hub struct {
	lastSeen domain.LastSeenStore
	log      zerolog.Logger
	metrics  Metrics
	now      func() time.Time

	mu     sync.Mutex
	conns  map[domain.UserID]map[domain.ConnectionID]Conn
	typing map[domain.UserID]domain.UserID
	closed bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.log = l.With().Str("component", "presence").Logger() }
}

// WithMetrics reports gauges to m.
func WithMetrics(m Metrics) Option { return func(h *Hub) { h.metrics = m } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// NewHub returns an empty hub. lastSeen may be nil.
func NewHub(lastSeen domain.LastSeenStore, opts ...Option) *Hub {
	h := &Hub{
		lastSeen: lastSeen,
		log:      zerolog.Nop(),
		metrics:  nopMetrics{},
		now:      time.Now,
		conns:    make(map[domain.UserID]map[domain.ConnectionID]Conn),
		typing:   make(map[domain.UserID]domain.UserID),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Connect registers conn for user and broadcasts the new online set.
func (h *Hub) Connect(user domain.UserID, conn Conn) (domain.ConnectionRecord, error) {
	if user == "" {
		return domain.ConnectionRecord{}, domain.InvalidArg("presence: empty user id")
	}
	rec := domain.ConnectionRecord{
		UserID:       user,
		ConnectionID: domain.ConnectionID(uuid.NewString()),
		ConnectedAt:  h.now(),
		State:        domain.ConnConnected,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return domain.ConnectionRecord{}, domain.TransportError("presence: hub closed", nil)
	}
	set, ok := h.conns[user]
	if !ok {
		set = make(map[domain.ConnectionID]Conn)
		h.conns[user] = set
	}
	set[rec.ConnectionID] = conn
	h.broadcastOnlineLocked()

	h.log.Debug().
		Str("user", user.String()).
		Str("conn", rec.ConnectionID.String()).
		Int("tabs", len(set)).
		Msg("connected")
	return rec, nil
}

// Disconnect removes the connection in rec. It is safe to call more than once.
// When it was the user's last connection the user goes offline and their
// last-seen time is stored.
func (h *Hub) Disconnect(rec domain.ConnectionRecord) domain.ConnectionRecord {
	rec.State = domain.ConnDisconnected

	h.mu.Lock()
	set, ok := h.conns[rec.UserID]
	if !ok {
		h.mu.Unlock()
		return rec
	}
	if _, ok := set[rec.ConnectionID]; !ok {
		h.mu.Unlock()
		return rec
	}
	delete(set, rec.ConnectionID)
	offline := len(set) == 0
	if offline {
		delete(h.conns, rec.UserID)
	}
	if target, ok := h.typing[rec.UserID]; ok {
		delete(h.typing, rec.UserID)
		h.sendLocked(target, domain.EventUserStopTyping, domain.TypingNotice{SenderID: rec.UserID})
	}
	h.broadcastOnlineLocked()
	at := h.now()
	h.mu.Unlock()

	h.log.Debug().
		Str("user", rec.UserID.String()).
		Str("conn", rec.ConnectionID.String()).
		Bool("offline", offline).
		Msg("disconnected")

	if offline && h.lastSeen != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.lastSeen.SetLastSeen(ctx, rec.UserID, at); err != nil {
			h.log.Warn().Err(err).Str("user", rec.UserID.String()).Msg("store last seen")
		}
	}
	return rec
}

// StartTyping records that user is typing to peer and notifies peer. A user
// types to one peer at a time; switching peers stops the previous indicator.
func (h *Hub) StartTyping(user, peer domain.UserID) {
	if user == "" || peer == "" || user == peer {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.typing[user]; ok && prev != peer {
		h.sendLocked(prev, domain.EventUserStopTyping, domain.TypingNotice{SenderID: user})
	}
	h.typing[user] = peer
	h.sendLocked(peer, domain.EventUserTyping, domain.TypingNotice{SenderID: user})
}

// StopTyping clears user's indicator for peer. A stop aimed at anyone other
// than the current target is ignored.
func (h *Hub) StopTyping(user, peer domain.UserID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.typing[user]; !ok || cur != peer {
		return
	}
	delete(h.typing, user)
	h.sendLocked(peer, domain.EventUserStopTyping, domain.TypingNotice{SenderID: user})
}

// SendToUser delivers ev to every connection of id and returns how many
// accepted it. Offline users get nothing.
func (h *Hub) SendToUser(id domain.UserID, ev domain.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deliverLocked(id, ev)
}

// OnlineUsers returns the online set, sorted.
func (h *Hub) OnlineUsers() []domain.UserID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onlineLocked()
}

// IsOnline reports whether id has at least one connection.
func (h *Hub) IsOnline(id domain.UserID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[id]
	return ok
}

// Connections returns the number of live connections of id.
func (h *Hub) Connections(id domain.UserID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[id])
}

// TypingTarget returns whom user is typing to.
func (h *Hub) TypingTarget(user domain.UserID) (domain.UserID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peer, ok := h.typing[user]
	return peer, ok
}

// Close drops every connection and refuses new ones. Users still online go
// offline with their last-seen time stored.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var all []Conn
	for _, set := range h.conns {
		for _, c := range set {
			all = append(all, c)
		}
	}
	users := h.onlineLocked()
	h.conns = make(map[domain.UserID]map[domain.ConnectionID]Conn)
	h.typing = make(map[domain.UserID]domain.UserID)
	h.metrics.SetOnline(0, 0)
	at := h.now()
	h.mu.Unlock()

	for _, c := range all {
		_ = c.Close()
	}
	if h.lastSeen == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range users {
		if err := h.lastSeen.SetLastSeen(ctx, id, at); err != nil {
			h.log.Warn().Err(err).Str("user", id.String()).Msg("store last seen")
		}
	}
	return nil
}

func (h *Hub) onlineLocked() []domain.UserID {
	ids := make([]domain.UserID, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Hub) broadcastOnlineLocked() {
	online := h.onlineLocked()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	h.metrics.SetOnline(len(online), n)

	ev, err := domain.NewEvent(domain.EventOnlineUsers, online)
	if err != nil {
		h.log.Error().Err(err).Msg("encode online users")
		return
	}
	for id := range h.conns {
		h.deliverLocked(id, ev)
	}
}

func (h *Hub) sendLocked(to domain.UserID, name string, payload any) {
	ev, err := domain.NewEvent(name, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("encode event")
		return
	}
	h.deliverLocked(to, ev)
}

func (h *Hub) deliverLocked(to domain.UserID, ev domain.Event) int {
	n := 0
	for cid, c := range h.conns[to] {
		if err := c.Send(ev); err != nil {
			h.metrics.EventDropped(ev.Name)
			h.log.Warn().Err(err).
				Str("user", to.String()).
				Str("conn", cid.String()).
				Str("event", ev.Name).
				Msg("event dropped")
			continue
		}
		n++
	}
	return n
}

// Compile-time assertion that Hub implements domain.Pusher.
var _ domain.Pusher = (*Hub)(nil)
