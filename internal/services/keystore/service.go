package keystore

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"parley/internal/crypto"
	"parley/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12

	privateFlightKey = "\x00self"

	// fetchTimeout bounds a shared directory fetch. Flights run detached from
	// the first caller's context so its cancellation cannot fail the others.
	fetchTimeout = 15 * time.Second
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service caches identity keys for one logged-in user.
type Service struct {
	self domain.UserID
	dir  domain.KeyDirectory

	cache      domain.IdentityStore
	passphrase string
	log        zerolog.Logger

	mu     sync.Mutex
	priv   *rsa.PrivateKey
	pubs   map[domain.UserID]*rsa.PublicKey
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithIdentityCache keeps the private key on disk, sealed under passphrase.
func WithIdentityCache(store domain.IdentityStore, passphrase string) Option {
	return func(s *Service) {
		s.cache = store
		s.passphrase = passphrase
	}
}

// WithLogger sets the logger used for non-fatal cache failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a key store for self backed by dir.
func New(self domain.UserID, dir domain.KeyDirectory, opts ...Option) *Service {
	s := &Service{
		self: self,
		dir:  dir,
		log:  zerolog.Nop(),
		pubs: make(map[domain.UserID]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PublicKey returns the public key of id, fetching it from the directory on
// first use.
func (s *Service) PublicKey(ctx context.Context, id domain.UserID) (*rsa.PublicKey, error) {
	s.mu.Lock()
	pub, ok := s.pubs[id]
	s.mu.Unlock()
	if ok {
		return pub, nil
	}

	v, err, _ := s.flight.Do(string(id), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		pemStr, err := s.dir.PublicKey(fctx, id)
		if err != nil {
			return nil, asDirectoryError("fetch public key of "+id.String(), err)
		}
		pub, err := crypto.ParsePublicKeyPEM(pemStr)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.pubs[id] = pub
		s.mu.Unlock()
		return pub, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

// PrivateKey returns the local user's private key. The on-disk cache is
// consulted before the directory.
func (s *Service) PrivateKey(ctx context.Context) (*rsa.PrivateKey, error) {
	s.mu.Lock()
	priv := s.priv
	s.mu.Unlock()
	if priv != nil {
		return priv, nil
	}

	v, err, _ := s.flight.Do(privateFlightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		pemStr, fromCache, err := s.loadPrivatePEM(fctx)
		if err != nil {
			return nil, err
		}
		priv, err := crypto.ParsePrivateKeyPEM(pemStr)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && !fromCache {
			s.storePrivatePEM(priv, pemStr)
		}
		s.mu.Lock()
		s.priv = priv
		s.mu.Unlock()
		return priv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PrivateKey), nil
}

// Fingerprint returns the short fingerprint of the local public key.
func (s *Service) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	priv, err := s.PrivateKey(ctx)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(&priv.PublicKey)
}

// Clear forgets every cached key. The on-disk cache is left alone.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priv = nil
	s.pubs = make(map[domain.UserID]*rsa.PublicKey)
}

func (s *Service) loadPrivatePEM(ctx context.Context) (string, bool, error) {
	if s.cache != nil {
		id, ok, err := s.cache.LoadIdentity(s.passphrase, s.self)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("user", s.self.String()).Msg("identity cache unreadable, refetching")
		case ok && id.PrivateKeyPEM != "":
			return id.PrivateKeyPEM, true, nil
		}
	}
	pemStr, err := s.dir.PrivateKey(ctx)
	if err != nil {
		return "", false, asDirectoryError("fetch private key", err)
	}
	return pemStr, false, nil
}

func (s *Service) storePrivatePEM(priv *rsa.PrivateKey, pemStr string) {
	pubPEM, err := crypto.MarshalPublicKeyPEM(&priv.PublicKey)
	if err == nil {
		err = s.cache.SaveIdentity(s.passphrase, domain.Identity{
			ID:            s.self,
			PublicKeyPEM:  pubPEM,
			PrivateKeyPEM: pemStr,
		})
	}
	if err != nil {
		s.log.Warn().Err(err).Str("user", s.self.String()).Msg("identity cache write failed")
	}
}

func asDirectoryError(msg string, err error) error {
	if errors.Is(err, domain.ErrDirectory) {
		return err
	}
	return domain.DirectoryError(msg, err)
}

// CheckPassphrase enforces a basic strength policy on identity cache passphrases.
func CheckPassphrase(passphrase string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return ErrWeakPassphrase
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !(hasUpper && hasLower && hasDigit && hasSymbol) {
		return ErrWeakPassphrase
	}
	return nil
}

// Compile-time assertion that Service implements domain.KeyStore.
var _ domain.KeyStore = (*Service)(nil)
