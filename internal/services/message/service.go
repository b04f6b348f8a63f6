package message

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/crypto"
	"parley/internal/domain"
)

// Update is one live event after decryption, handed to the Run callback.
type Update struct {
	Event   string
	Message *domain.DisplayMessage
	Deleted domain.MessageID
	Online  []domain.UserID
	Typing  domain.UserID
}

// Service encrypts, sends and decrypts messages for one logged-in user.
type Service struct {
	self     domain.UserID
	sessions domain.SessionKeyManager
	keys     domain.KeyStore
	api      domain.MessageAPI
	log      zerolog.Logger

	onWarning func(peer domain.UserID, err error)

	mu     sync.Mutex
	online []domain.UserID
	typing map[domain.UserID]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithMessageAPI sets the API used by Send.
func WithMessageAPI(api domain.MessageAPI) Option {
	return func(s *Service) { s.api = api }
}

// WithWarningHandler registers fn to be told when a message to peer went out
// unencrypted.
func WithWarningHandler(fn func(peer domain.UserID, err error)) Option {
	return func(s *Service) { s.onWarning = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "chat").Logger() }
}

// New returns a controller for self.
func New(self domain.UserID, sessions domain.SessionKeyManager, keys domain.KeyStore, opts ...Option) *Service {
	s := &Service{
		self:     self,
		sessions: sessions,
		keys:     keys,
		log:      zerolog.Nop(),
		typing:   make(map[domain.UserID]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SendText builds the outgoing body for plaintext. On any crypto or directory
// failure the text is sent in the clear and Warning is set on the result.
func (s *Service) SendText(ctx context.Context, peer domain.UserID, plaintext string) domain.OutgoingEnvelope {
	env, err := s.encrypt(ctx, peer, plaintext)
	if err != nil {
		s.log.Warn().Err(err).Str("peer", peer.String()).Msg("encryption failed, sending plaintext")
		if s.onWarning != nil {
			s.onWarning(peer, err)
		}
		return domain.OutgoingEnvelope{Text: plaintext, Warning: err}
	}
	return domain.OutgoingEnvelope{EncryptedText: &env, IsEncrypted: true}
}

func (s *Service) encrypt(ctx context.Context, peer domain.UserID, plaintext string) (domain.EncryptedEnvelope, error) {
	sk, err := s.sessions.GetOrCreateOutgoingKey(ctx, peer)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	var wrapped []byte
	if sk.PendingWrap {
		if wrapped, err = crypto.FromB64(sk.WrappedForPeer); err != nil {
			return domain.EncryptedEnvelope{}, err
		}
	}
	env, err := crypto.SealEnvelope(plaintext, sk.Key, wrapped)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	if sk.PendingWrap {
		s.sessions.MarkWrapSent(peer, sk.Key)
	}
	return env, nil
}

// Send encrypts plaintext for peer and posts it. The returned message is the
// stored record with its body resolved for display.
func (s *Service) Send(ctx context.Context, peer domain.UserID, plaintext string) (domain.DisplayMessage, error) {
	if s.api == nil {
		return domain.DisplayMessage{}, errors.New("message: no API configured")
	}
	out := s.SendText(ctx, peer, plaintext)
	m, err := s.api.SendMessage(ctx, peer, out)
	if err != nil {
		return domain.DisplayMessage{}, err
	}
	return domain.DisplayMessage{Message: m, Body: plaintext, Decrypted: m.IsEncrypted}, nil
}

// ReceiveText decrypts env from sender, or returns the placeholder text.
func (s *Service) ReceiveText(ctx context.Context, env domain.EncryptedEnvelope, sender domain.UserID) string {
	key, err := s.sessions.ResolveIncomingKey(ctx, env, sender)
	if err != nil {
		s.log.Debug().Err(err).Str("sender", sender.String()).Msg("no key for incoming message")
		return domain.UndecryptablePlaceholder
	}
	pt, err := crypto.OpenEnvelope(env, key)
	if err != nil {
		s.log.Debug().Err(err).Str("sender", sender.String()).Msg("decrypt failed")
		return domain.UndecryptablePlaceholder
	}
	return pt
}

// ReceiveHistory resolves every message in order. Messages are processed one
// at a time because an early envelope may carry the key for later ones.
func (s *Service) ReceiveHistory(ctx context.Context, msgs []domain.Message) []domain.DisplayMessage {
	out := make([]domain.DisplayMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.display(ctx, m))
	}
	return out
}

// History fetches the conversation with peer and resolves it for display.
func (s *Service) History(ctx context.Context, peer domain.UserID) ([]domain.DisplayMessage, error) {
	if s.api == nil {
		return nil, errors.New("message: no API configured")
	}
	msgs, err := s.api.Conversation(ctx, peer)
	if err != nil {
		return nil, err
	}
	return s.ReceiveHistory(ctx, msgs), nil
}

func (s *Service) display(ctx context.Context, m domain.Message) domain.DisplayMessage {
	d := domain.DisplayMessage{Message: m, Body: m.Text}
	if !m.IsEncrypted {
		return d
	}
	d.Body = domain.UndecryptablePlaceholder
	if m.EncryptedText == nil {
		return d
	}
	if m.SenderID == s.self {
		// Our own key for the receiver; nothing to unwrap.
		key, ok := s.sessions.CachedKey(m.ReceiverID)
		if !ok {
			return d
		}
		if pt, err := crypto.OpenEnvelope(*m.EncryptedText, key); err == nil {
			d.Body, d.Decrypted = pt, true
		}
		return d
	}
	d.Body = s.ReceiveText(ctx, *m.EncryptedText, m.SenderID)
	d.Decrypted = d.Body != domain.UndecryptablePlaceholder
	return d
}

// Run consumes live events from tr until ctx ends or the transport closes,
// calling handle for each. Nothing is delivered after Run returns.
func (s *Service) Run(ctx context.Context, tr domain.Transport, handle func(Update)) error {
	events := tr.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return domain.TransportError("live connection closed", nil)
			}
			u, ok := s.apply(ctx, ev)
			if !ok || handle == nil {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			handle(u)
		}
	}
}

func (s *Service) apply(ctx context.Context, ev domain.Event) (Update, bool) {
	u := Update{Event: ev.Name}
	switch ev.Name {
	case domain.EventNewMessage, domain.EventNewGroupMessage, domain.EventMessageUpdated:
		var m domain.Message
		if err := ev.Decode(&m); err != nil {
			s.log.Warn().Err(err).Str("event", ev.Name).Msg("malformed message event")
			return u, false
		}
		d := s.display(ctx, m)
		u.Message = &d
		if ev.Name == domain.EventNewMessage {
			s.clearTyping(m.SenderID)
		}
	case domain.EventMessageDeleted:
		var del domain.DeletedMessage
		if err := ev.Decode(&del); err != nil {
			return u, false
		}
		u.Deleted = del.ID
	case domain.EventOnlineUsers:
		var ids []domain.UserID
		if err := ev.Decode(&ids); err != nil {
			return u, false
		}
		s.mu.Lock()
		s.online = ids
		s.mu.Unlock()
		u.Online = slices.Clone(ids)
	case domain.EventUserTyping, domain.EventUserStopTyping:
		var n domain.TypingNotice
		if err := ev.Decode(&n); err != nil {
			return u, false
		}
		s.mu.Lock()
		if ev.Name == domain.EventUserTyping {
			s.typing[n.SenderID] = struct{}{}
		} else {
			delete(s.typing, n.SenderID)
		}
		s.mu.Unlock()
		u.Typing = n.SenderID
	default:
		s.log.Debug().Str("event", ev.Name).Msg("ignoring unknown event")
		return u, false
	}
	return u, true
}

func (s *Service) clearTyping(id domain.UserID) {
	s.mu.Lock()
	delete(s.typing, id)
	s.mu.Unlock()
}

// StartTyping tells peer we are typing. Delivery is best effort.
func (s *Service) StartTyping(ctx context.Context, tr domain.Transport, peer domain.UserID) {
	s.emitTyping(ctx, tr, domain.EventStartTyping, peer)
}

// StopTyping tells peer we stopped typing. Delivery is best effort.
func (s *Service) StopTyping(ctx context.Context, tr domain.Transport, peer domain.UserID) {
	s.emitTyping(ctx, tr, domain.EventStopTyping, peer)
}

func (s *Service) emitTyping(ctx context.Context, tr domain.Transport, name string, peer domain.UserID) {
	if tr == nil {
		return
	}
	if err := tr.Emit(ctx, name, domain.TypingTarget{ReceiverID: peer}); err != nil {
		s.log.Debug().Err(err).Str("event", name).Msg("typing indicator dropped")
	}
}

// OnlineUsers returns the last online set pushed by the server.
func (s *Service) OnlineUsers() []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.online)
}

// IsTyping reports whether peer is currently typing to us.
func (s *Service) IsTyping(peer domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typing[peer]
	return ok
}

// Teardown wipes session keys and cached identity keys. Used on logout.
func (s *Service) Teardown() {
	s.sessions.Clear()
	if s.keys != nil {
		s.keys.Clear()
	}
	s.mu.Lock()
	s.online = nil
	s.typing = make(map[domain.UserID]struct{})
	s.mu.Unlock()
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
