package app

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"parley/internal/domain"
	"parley/internal/relay"
	"parley/internal/services/keystore"
	"parley/internal/services/message"
	"parley/internal/services/session"
	"parley/internal/store"
)

// Client bundles the local stores and the relay API for one server.
type Client struct {
	Config     ClientConfig
	Log        zerolog.Logger
	Accounts   *store.AccountFileStore
	Identities *store.IdentityFileStore
	API        *relay.HTTP

	profile domain.AccountProfile
	active  bool
}

// NewClient prepares the config directory and restores a saved login for
// cfg.ServerURL if there is one.
func NewClient(cfg ClientConfig, log zerolog.Logger) (*Client, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, domain.Internal("create config dir", err)
	}
	c := &Client{
		Config:     cfg,
		Log:        log,
		Accounts:   store.NewAccountFileStore(cfg.Home),
		Identities: store.NewIdentityFileStore(cfg.Home),
		API:        relay.NewHTTP(cfg.ServerURL),
	}
	p, ok, err := c.Accounts.LoadAccountProfile(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if ok {
		c.profile, c.active = p, true
		c.API.SetToken(p.Token)
	}
	return c, nil
}

// Profile returns the saved login, if any.
func (c *Client) Profile() (domain.AccountProfile, bool) { return c.profile, c.active }

// Signup creates an account and saves the login.
func (c *Client) Signup(ctx context.Context, req domain.Signup) (domain.PublicUser, error) {
	sess, err := c.API.Signup(ctx, req)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return sess.User, c.remember(sess)
}

// Login authenticates and saves the login.
func (c *Client) Login(ctx context.Context, req domain.Login) (domain.PublicUser, error) {
	sess, err := c.API.Login(ctx, req)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return sess.User, c.remember(sess)
}

func (c *Client) remember(sess domain.Session) error {
	p := domain.AccountProfile{
		ServerURL: c.Config.ServerURL,
		UserID:    sess.User.ID,
		Email:     sess.User.Email,
		FullName:  sess.User.FullName,
		Token:     sess.Token,
	}
	if err := c.Accounts.SaveAccountProfile(p); err != nil {
		return err
	}
	c.profile, c.active = p, true
	return nil
}

// Logout forgets the saved login and the cached identity for this server.
func (c *Client) Logout() error {
	if !c.active {
		return nil
	}
	if err := c.Identities.DeleteIdentity(c.profile.UserID); err != nil {
		c.Log.Warn().Err(err).Msg("delete cached identity")
	}
	if err := c.Accounts.DeleteAccountProfile(c.Config.ServerURL); err != nil {
		return err
	}
	c.API.SetToken("")
	c.profile, c.active = domain.AccountProfile{}, false
	return nil
}

// Session is the per-login crypto state: keys, session keys and messaging.
type Session struct {
	Self     domain.UserID
	Keys     *keystore.Service
	Sessions *session.Service
	Messages *message.Service
}

// Session opens the crypto state for the saved login. With a passphrase the
// private key is cached on disk sealed under it.
func (c *Client) Session(warn func(peer domain.UserID, err error)) (*Session, error) {
	if !c.active {
		return nil, domain.Unauthorized("not logged in; run login first")
	}
	self := c.profile.UserID
	opts := []keystore.Option{keystore.WithLogger(c.Log)}
	if c.Config.Passphrase != "" {
		if err := keystore.CheckPassphrase(c.Config.Passphrase); err != nil {
			return nil, domain.Wrap(domain.CodeInvalidArgument, "passphrase", err)
		}
		opts = append(opts, keystore.WithIdentityCache(c.Identities, c.Config.Passphrase))
	}
	keys := keystore.New(self, c.API, opts...)
	sessions := session.New(self, keys, c.Log)
	msgOpts := []message.Option{message.WithMessageAPI(c.API), message.WithLogger(c.Log)}
	if warn != nil {
		msgOpts = append(msgOpts, message.WithWarningHandler(warn))
	}
	return &Session{
		Self:     self,
		Keys:     keys,
		Sessions: sessions,
		Messages: message.New(self, sessions, keys, msgOpts...),
	}, nil
}

// Close wipes every cached key.
func (s *Session) Close() { s.Messages.Teardown() }
