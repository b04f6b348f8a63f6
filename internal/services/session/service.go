package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"parley/internal/crypto"
	"parley/internal/domain"
)

// fetchTimeout bounds the shared public key lookup, which outlives any single
// caller's context.
const fetchTimeout = 15 * time.Second

const maxAttempts = 3

// outgoing is the key this process encrypts with for one peer.
type outgoing struct {
	key     domain.SymmetricKey
	wrapped string // key wrapped for the peer; empty until computed
	local   bool   // generated here rather than learned from the peer
	pending bool   // wrapped must ride on the next outgoing envelope
}

// Service is the in-memory session key manager of one logged-in user.
//
// It keeps two keys per peer. The outgoing key encrypts what we send. The
// incoming key is the one the peer last announced with a wrap and decrypts
// the peer's wrap-less envelopes. They are usually equal; they differ only
// while a concurrent first contact settles.
type Service struct {
	self domain.UserID
	keys domain.KeyStore
	log  zerolog.Logger

	mu       sync.Mutex
	out      map[domain.UserID]*outgoing
	incoming map[domain.UserID]domain.SymmetricKey
	flight   singleflight.Group
}

// New constructs a session key manager for self.
func New(self domain.UserID, keys domain.KeyStore, log zerolog.Logger) *Service {
	return &Service{
		self:     self,
		keys:     keys,
		log:      log.With().Str("component", "session").Logger(),
		out:      make(map[domain.UserID]*outgoing),
		incoming: make(map[domain.UserID]domain.SymmetricKey),
	}
}

// GetOrCreateOutgoingKey returns the key for peer, creating and wrapping one
// on first use. A key learned from the peer is wrapped afresh before its
// first use here, so the peer can recover it even from a later process.
// Concurrent callers for the same peer share a single directory lookup.
//
// The returned SessionKey carries WrappedForPeer with PendingWrap set when the
// wrap still has to be sent; call MarkWrapSent once an envelope carrying it
// has been built.
func (s *Service) GetOrCreateOutgoingKey(ctx context.Context, peer domain.UserID) (domain.SessionKey, error) {
	for attempt := 0; ; attempt++ {
		if sk, ok := s.ready(peer); ok {
			return sk, nil
		}
		if attempt == maxAttempts {
			// Cleared, or replaced by the peer, on every attempt.
			return domain.SessionKey{}, domain.KeyUnavailable("session with " + peer.String() + " kept changing")
		}
		if err := s.prepare(ctx, peer); err != nil {
			return domain.SessionKey{}, err
		}
	}
}

// prepare creates the outgoing key for peer, or computes the wrap a learned
// key still owes the peer.
func (s *Service) prepare(ctx context.Context, peer domain.UserID) error {
	_, err, _ := s.flight.Do(string(peer), func() (any, error) {
		if _, ok := s.ready(peer); ok {
			return nil, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		pub, err := s.keys.PublicKey(fctx, peer)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		e, ok := s.out[peer]
		switch {
		case !ok:
			key, err := crypto.GenerateSymmetricKey()
			if err != nil {
				return nil, err
			}
			wrapped, err := crypto.WrapKey(key[:], pub)
			if err != nil {
				crypto.WipeKey(&key)
				return nil, err
			}
			s.out[peer] = &outgoing{key: key, wrapped: crypto.B64(wrapped), local: true, pending: true}
			s.log.Debug().Str("peer", peer.String()).Msg("session key created")
		case e.pending && e.wrapped == "":
			wrapped, err := crypto.WrapKey(e.key[:], pub)
			if err != nil {
				return nil, err
			}
			e.wrapped = crypto.B64(wrapped)
			s.log.Debug().Str("peer", peer.String()).Msg("learned session key wrapped for peer")
		}
		return nil, nil
	})
	return err
}

// MarkWrapSent records that the wrap for key went out to peer. It is a no-op
// if the outgoing key for peer has changed since.
func (s *Service) MarkWrapSent(peer domain.UserID, key domain.SymmetricKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.out[peer]; ok && e.key == key {
		e.pending = false
	}
}

// ResolveIncomingKey returns the key that decrypts env from sender.
//
// A wrapped key on the envelope is always unwrapped, used for this message
// and remembered for the sender's following wrap-less envelopes. Separately
// it may become our outgoing key: always when we have none or ours was
// learned, and on a concurrent first contact only when the sender's id sorts
// lower than ours. The losing side re-announces its key, so both ends end up
// sending with the lower id's key.
func (s *Service) ResolveIncomingKey(
	ctx context.Context,
	env domain.EncryptedEnvelope,
	sender domain.UserID,
) (domain.SymmetricKey, error) {
	if env.WrappedSessionKey == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if key, ok := s.incoming[sender]; ok {
			return key, nil
		}
		// The sender is using the key we announced to them.
		if e, ok := s.out[sender]; ok {
			return e.key, nil
		}
		return domain.SymmetricKey{}, domain.KeyUnavailable("no session key for " + sender.String())
	}

	wrapped, err := crypto.FromB64(env.WrappedSessionKey)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	priv, err := s.keys.PrivateKey(ctx)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	raw, err := crypto.UnwrapKey(wrapped, priv)
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	key, err := crypto.SymmetricKeyFromBytes(raw)
	crypto.Wipe(raw)
	if err != nil {
		return domain.SymmetricKey{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.incoming[sender] = key

	cur, ok := s.out[sender]
	switch {
	case !ok:
		s.out[sender] = &outgoing{key: key, pending: true}
	case cur.key == key:
	case cur.local && s.self < sender:
		// Collision: we keep sending with ours and make sure the peer hears it.
		cur.pending = true
		s.log.Debug().Str("peer", sender.String()).Msg("session key collision, keeping local key")
	default:
		crypto.WipeKey(&cur.key)
		s.out[sender] = &outgoing{key: key, pending: true}
		s.log.Debug().Str("peer", sender.String()).Msg("outgoing session key replaced by peer")
	}
	return key, nil
}

// CachedKey returns the key we send to peer with, or failing that the key
// last learned from peer, without touching the network.
func (s *Service) CachedKey(peer domain.UserID) (domain.SymmetricKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.out[peer]; ok {
		return e.key, true
	}
	key, ok := s.incoming[peer]
	return key, ok
}

// Clear wipes and forgets every session key.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for peer, e := range s.out {
		crypto.WipeKey(&e.key)
		delete(s.out, peer)
	}
	for peer, key := range s.incoming {
		crypto.WipeKey(&key)
		delete(s.incoming, peer)
	}
}

// ready returns the outgoing key for peer if it can be used right now, that
// is, it exists and any wrap it still owes the peer has been computed.
func (s *Service) ready(peer domain.UserID) (domain.SessionKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.out[peer]
	if !ok || (e.pending && e.wrapped == "") {
		return domain.SessionKey{}, false
	}
	sk := domain.SessionKey{PeerID: peer, Key: e.key, PendingWrap: e.pending}
	if e.pending {
		sk.WrappedForPeer = e.wrapped
	}
	return sk, true
}

// Compile-time assertion that Service implements domain.SessionKeyManager.
var _ domain.SessionKeyManager = (*Service)(nil)
