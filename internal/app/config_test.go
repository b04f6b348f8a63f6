package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
)

func TestLoadServerConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
db_path: /tmp/parley-test.db
jwt_secret: a-secret-of-some-length
token_ttl: 2h
allowed_origins:
  - http://localhost:5173
`), 0o600))

	c, err := LoadServerConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.Equal(t, 2048, c.RSABits)
	assert.Equal(t, []string{"http://localhost:5173"}, c.AllowedOrigins)
	assert.True(t, c.Metrics)
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PARLEY_JWT_SECRET", "env-provided-secret-value")
	t.Setenv("PARLEY_ADDR", ":7777")

	c, err := LoadServerConfig(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, ":7777", c.Addr)
	assert.Equal(t, "env-provided-secret-value", c.JWTSecret)
	assert.Equal(t, 168*time.Hour, c.TokenTTL)
}

func TestLoadServerConfigRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := LoadServerConfig(viper.New(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLoadServerConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadServerConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLoadClientConfig(t *testing.T) {
	v := viper.New()
	v.Set("home", "/tmp/parley")
	v.Set("server", "http://localhost:5001/")
	c, err := LoadClientConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5001", c.ServerURL)

	_, err = LoadClientConfig(viper.New())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, zerolog.InfoLevel, NewLogger(&buf, "bogus", "json").GetLevel())
}

func TestClientLoginLifecycle(t *testing.T) {
	home := t.TempDir()
	c, err := NewClient(ClientConfig{Home: home, ServerURL: "http://localhost:5001"}, zerolog.Nop())
	require.NoError(t, err)
	_, ok := c.Profile()
	assert.False(t, ok)

	_, err = c.Session(nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	require.NoError(t, c.remember(domain.Session{
		User:  domain.PublicUser{ID: "u-1", Email: "a@example.com", FullName: "A"},
		Token: "tok",
	}))

	again, err := NewClient(ClientConfig{Home: home, ServerURL: "http://localhost:5001"}, zerolog.Nop())
	require.NoError(t, err)
	p, ok := again.Profile()
	require.True(t, ok)
	assert.Equal(t, domain.UserID("u-1"), p.UserID)
	assert.Equal(t, "tok", again.API.Token())

	sess, err := again.Session(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u-1"), sess.Self)
	sess.Close()

	require.NoError(t, again.Logout())
	_, ok = again.Profile()
	assert.False(t, ok)
}

func TestClientRejectsWeakPassphrase(t *testing.T) {
	c, err := NewClient(ClientConfig{Home: t.TempDir(), ServerURL: "http://x", Passphrase: "short"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, c.remember(domain.Session{User: domain.PublicUser{ID: "u-1"}, Token: "t"}))
	_, err = c.Session(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
