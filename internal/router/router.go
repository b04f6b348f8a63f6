package router

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parley/internal/crypto"
	"parley/internal/domain"
)

// Metrics counts routed messages.
type Metrics interface {
	MessageRouted(kind string, delivered int)
}

type nopMetrics struct{}

func (nopMetrics) MessageRouted(string, int) {}

// Router is the server-side message router.
type Router struct {
	messages domain.MessageStore
	groups   domain.GroupStore
	push     domain.Pusher
	log      zerolog.Logger
	metrics  Metrics
	now      func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.log = l.With().Str("component", "router").Logger() }
}

// WithMetrics reports routed messages to m.
func WithMetrics(m Metrics) Option { return func(r *Router) { r.metrics = m } }

// New returns a Router.
func New(messages domain.MessageStore, groups domain.GroupStore, push domain.Pusher, opts ...Option) *Router {
	r := &Router{
		messages: messages,
		groups:   groups,
		push:     push,
		log:      zerolog.Nop(),
		metrics:  nopMetrics{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route stores a direct message and pushes newMessage to the receiver.
func (r *Router) Route(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.ReceiverID == "" || m.GroupID != "" {
		return domain.Message{}, domain.InvalidArg("direct message needs a receiver and no group")
	}
	if m.ReceiverID == m.SenderID {
		return domain.Message{}, domain.InvalidArg("cannot message yourself")
	}
	if err := validateBody(m); err != nil {
		return domain.Message{}, err
	}

	saved, err := r.save(ctx, m)
	if err != nil {
		return domain.Message{}, err
	}
	n := r.emit(saved.ReceiverID, domain.EventNewMessage, saved)
	r.metrics.MessageRouted("direct", n)
	r.log.Debug().
		Str("id", saved.ID.String()).
		Str("from", saved.SenderID.String()).
		Str("to", saved.ReceiverID.String()).
		Bool("encrypted", saved.IsEncrypted).
		Int("delivered", n).
		Msg("routed")
	return saved, nil
}

// RouteGroup stores a group message and pushes newGroupMessage to every
// member except the sender. Group messages are plaintext only.
func (r *Router) RouteGroup(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.GroupID == "" || m.ReceiverID != "" {
		return domain.Message{}, domain.InvalidArg("group message needs a group and no receiver")
	}
	if m.IsEncrypted || m.EncryptedText != nil {
		return domain.Message{}, domain.InvalidArg("group messages are not encrypted")
	}
	if err := validateBody(m); err != nil {
		return domain.Message{}, err
	}
	g, err := r.groups.GetGroup(ctx, m.GroupID)
	if err != nil {
		return domain.Message{}, err
	}
	if !g.HasMember(m.SenderID) {
		return domain.Message{}, domain.Forbidden("not a member of this group")
	}

	saved, err := r.save(ctx, m)
	if err != nil {
		return domain.Message{}, err
	}
	n := r.fanout(g, saved.SenderID, domain.EventNewGroupMessage, saved)
	r.metrics.MessageRouted("group", n)
	return saved, nil
}

// Edit replaces the text of message id. Only its sender may edit it; the
// edited body is stored unencrypted.
func (r *Router) Edit(ctx context.Context, actor domain.UserID, id domain.MessageID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, domain.InvalidArg("text is required")
	}
	m, err := r.owned(ctx, actor, id)
	if err != nil {
		return domain.Message{}, err
	}
	m.Text = text
	m.EncryptedText = nil
	m.IsEncrypted = false
	m.Edited = true
	m.UpdatedAt = r.now()
	if err := r.messages.UpdateMessage(ctx, m); err != nil {
		return domain.Message{}, err
	}
	r.notify(ctx, m, domain.EventMessageUpdated, m)
	return m, nil
}

// Delete tombstones message id. Only its sender may delete it.
func (r *Router) Delete(ctx context.Context, actor domain.UserID, id domain.MessageID) error {
	m, err := r.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	m.Deleted = true
	m.Text = ""
	m.EncryptedText = nil
	m.Image = ""
	m.UpdatedAt = r.now()
	if err := r.messages.UpdateMessage(ctx, m); err != nil {
		return err
	}
	r.notify(ctx, m, domain.EventMessageDeleted, domain.DeletedMessage{ID: m.ID})
	return nil
}

func (r *Router) owned(ctx context.Context, actor domain.UserID, id domain.MessageID) (domain.Message, error) {
	m, err := r.messages.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	if m.Deleted {
		return domain.Message{}, domain.NotFound("message not found")
	}
	if m.SenderID != actor {
		return domain.Message{}, domain.Forbidden("only the sender can change a message")
	}
	return m, nil
}

// notify pushes an update about m to its audience, the sender's other tabs included.
func (r *Router) notify(ctx context.Context, m domain.Message, name string, payload any) {
	if !m.IsGroup() {
		r.emit(m.ReceiverID, name, payload)
		r.emit(m.SenderID, name, payload)
		return
	}
	g, err := r.groups.GetGroup(ctx, m.GroupID)
	if err != nil {
		r.log.Warn().Err(err).Str("group", m.GroupID.String()).Msg("group lookup for update failed")
		return
	}
	r.fanout(g, "", name, payload)
}

func (r *Router) save(ctx context.Context, m domain.Message) (domain.Message, error) {
	now := r.now()
	m.ID = domain.MessageID(uuid.NewString())
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Edited = false
	m.Deleted = false
	saved, err := r.messages.SaveMessage(ctx, m)
	if err != nil {
		r.log.Error().Err(err).Str("from", m.SenderID.String()).Msg("persist message")
		return domain.Message{}, err
	}
	return saved, nil
}

func (r *Router) fanout(g domain.Group, skip domain.UserID, name string, payload any) int {
	ev, err := domain.NewEvent(name, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", name).Msg("encode event")
		return 0
	}
	n := 0
	for _, member := range g.Members {
		if member == skip {
			continue
		}
		n += r.push.SendToUser(member, ev)
	}
	return n
}

func (r *Router) emit(to domain.UserID, name string, payload any) int {
	ev, err := domain.NewEvent(name, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", name).Msg("encode event")
		return 0
	}
	return r.push.SendToUser(to, ev)
}

// validateBody checks that exactly one of text and encryptedText is set, and
// that an encrypted body is well formed.
func validateBody(m domain.Message) error {
	if m.SenderID == "" {
		return domain.InvalidArg("sender is required")
	}
	if !m.IsEncrypted {
		if m.EncryptedText != nil {
			return domain.InvalidArg("encryptedText set on a plaintext message")
		}
		if strings.TrimSpace(m.Text) == "" && m.Image == "" {
			return domain.InvalidArg("text or image is required")
		}
		return nil
	}
	if m.Text != "" {
		return domain.InvalidArg("text set on an encrypted message")
	}
	env := m.EncryptedText
	if env == nil || env.Ciphertext == "" {
		return domain.InvalidArg("encryptedText is required")
	}
	iv, err := crypto.FromB64(env.IV)
	if err != nil || len(iv) != crypto.IVSize {
		return domain.InvalidArg("encryptedText.iv must be 12 base64 bytes")
	}
	if _, err := crypto.FromB64(env.Ciphertext); err != nil {
		return domain.InvalidArg("encryptedText.ciphertext is not base64")
	}
	if env.WrappedSessionKey != "" {
		if _, err := crypto.FromB64(env.WrappedSessionKey); err != nil {
			return domain.InvalidArg("encryptedText.wrappedSessionKey is not base64")
		}
	}
	return nil
}
