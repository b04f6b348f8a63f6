package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/services/keystore"
	"parley/internal/services/session"
	"parley/internal/testkit"
)

func newManager(dir *testkit.Directory, self domain.UserID) *session.Service {
	return session.New(self, keystore.New(self, dir.As(self)), zerolog.Nop())
}

// seal builds the envelope a sender would produce and marks the wrap sent.
func seal(t *testing.T, m *session.Service, peer domain.UserID, text string) domain.EncryptedEnvelope {
	t.Helper()
	sk, err := m.GetOrCreateOutgoingKey(context.Background(), peer)
	require.NoError(t, err)
	var wrapped []byte
	if sk.PendingWrap {
		wrapped, err = crypto.FromB64(sk.WrappedForPeer)
		require.NoError(t, err)
	}
	env, err := crypto.SealEnvelope(text, sk.Key, wrapped)
	require.NoError(t, err)
	if sk.PendingWrap {
		m.MarkWrapSent(peer, sk.Key)
	}
	return env
}

func open(t *testing.T, m *session.Service, env domain.EncryptedEnvelope, sender domain.UserID) string {
	t.Helper()
	key, err := m.ResolveIncomingKey(context.Background(), env, sender)
	require.NoError(t, err)
	pt, err := crypto.OpenEnvelope(env, key)
	require.NoError(t, err)
	return pt
}

func TestOutgoingKey_WrapOnlyOnFirstEnvelope(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")

	first := seal(t, alice, "bob", "one")
	second := seal(t, alice, "bob", "two")

	assert.NotEmpty(t, first.WrappedSessionKey)
	assert.Empty(t, second.WrappedSessionKey)
	assert.NotEqual(t, first.IV, second.IV)
}

func TestOutgoingKey_SingleFlight(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")

	const n = 32
	keys := make([]domain.SymmetricKey, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sk, err := alice.GetOrCreateOutgoingKey(context.Background(), "bob")
			if err != nil {
				t.Errorf("GetOrCreateOutgoingKey: %v", err)
				return
			}
			keys[i] = sk.Key
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Equal(t, keys[0], keys[i], "caller %d got a different key", i)
	}
	require.Equal(t, 1, dir.PublicKeyCalls("bob"))
}

func TestOutgoingKey_DirectoryFailure(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	dir.SetFailure(errors.New("directory down"))
	alice := newManager(dir, "alice")

	_, err := alice.GetOrCreateOutgoingKey(context.Background(), "bob")
	require.ErrorIs(t, err, domain.ErrDirectory)
	_, ok := alice.CachedKey("bob")
	require.False(t, ok)
}

func TestIncomingKey_FirstContactAndReuse(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")
	bob := newManager(dir, "bob")

	require.Equal(t, "hello", open(t, bob, seal(t, alice, "bob", "hello"), "alice"))
	require.Equal(t, "again", open(t, bob, seal(t, alice, "bob", "again"), "alice"))

	// Bob answers with the learned key. His first reply wraps it once more.
	reply := seal(t, bob, "alice", "hi")
	require.NotEmpty(t, reply.WrappedSessionKey)
	require.Equal(t, "hi", open(t, alice, reply, "bob"))

	next := seal(t, bob, "alice", "how are you")
	require.Empty(t, next.WrappedSessionKey)
	require.Equal(t, "how are you", open(t, alice, next, "bob"))

	ka, _ := alice.CachedKey("bob")
	kb, _ := bob.CachedKey("alice")
	require.Equal(t, ka, kb)
}

func TestIncomingKey_LearnedKeySurvivesSenderRestart(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")

	bob1 := newManager(dir, "bob")
	require.Equal(t, "hi", open(t, alice, seal(t, bob1, "alice", "hi"), "bob"))

	// Bob restarts before alice's reply reaches him.
	bob2 := newManager(dir, "bob")
	reply := seal(t, alice, "bob", "hello")
	require.NotEmpty(t, reply.WrappedSessionKey)
	require.Equal(t, "hello", open(t, bob2, reply, "alice"))
}

func TestIncomingKey_Unavailable(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")
	bob := newManager(dir, "bob")

	seal(t, alice, "bob", "first") // lost in transit
	env := seal(t, alice, "bob", "second")

	_, err := bob.ResolveIncomingKey(context.Background(), env, "alice")
	require.ErrorIs(t, err, domain.ErrKeyUnavailable)
}

func TestIncomingKey_WrongRecipient(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob", "carol")
	alice := newManager(dir, "alice")
	carol := newManager(dir, "carol")

	env := seal(t, alice, "bob", "for bob")
	_, err := carol.ResolveIncomingKey(context.Background(), env, "alice")
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestConcurrentFirstContact_Converges(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")
	bob := newManager(dir, "bob")

	// Both send before either has received anything.
	fromAlice := seal(t, alice, "bob", "hello")
	fromBob := seal(t, bob, "alice", "hi")

	require.Equal(t, "hello", open(t, bob, fromAlice, "alice"))
	require.Equal(t, "hi", open(t, alice, fromBob, "bob"))

	ka, ok := alice.CachedKey("bob")
	require.True(t, ok)
	kb, ok := bob.CachedKey("alice")
	require.True(t, ok)
	require.Equal(t, ka, kb, "keys did not converge")

	// Alice's key won. Each side announces it once more and then every
	// message flows without a wrap in either direction.
	next := seal(t, alice, "bob", "still there?")
	require.NotEmpty(t, next.WrappedSessionKey)
	require.Equal(t, "still there?", open(t, bob, next, "alice"))

	back := seal(t, bob, "alice", "yes")
	require.NotEmpty(t, back.WrappedSessionKey)
	require.Equal(t, "yes", open(t, alice, back, "bob"))

	good := seal(t, alice, "bob", "good")
	require.Empty(t, good.WrappedSessionKey)
	require.Equal(t, "good", open(t, bob, good, "alice"))
	again := seal(t, bob, "alice", "bye")
	require.Empty(t, again.WrappedSessionKey)
	require.Equal(t, "bye", open(t, alice, again, "bob"))
}

func TestConcurrentFirstContact_HigherIDKeepsDecrypting(t *testing.T) {
	dir := testkit.NewDirectory(t, "amy", "zed")
	amy := newManager(dir, "amy")
	zed := newManager(dir, "zed")

	// Zed sends twice before hearing from amy, who is sending at the same time.
	m1 := seal(t, zed, "amy", "one")
	m2 := seal(t, zed, "amy", "two")
	require.NotEmpty(t, m1.WrappedSessionKey)
	require.Empty(t, m2.WrappedSessionKey)
	a1 := seal(t, amy, "zed", "hey")

	// Amy keeps her own key for sending but still reads zed's.
	require.Equal(t, "one", open(t, amy, m1, "zed"))
	require.Equal(t, "two", open(t, amy, m2, "zed"))

	// Zed sends once more before amy's envelope arrives.
	m3 := seal(t, zed, "amy", "three")
	require.Empty(t, m3.WrappedSessionKey)
	require.Equal(t, "three", open(t, amy, m3, "zed"))

	require.Equal(t, "hey", open(t, zed, a1, "amy"))

	// Zed has adopted amy's key and announces it with his next message.
	m4 := seal(t, zed, "amy", "four")
	require.NotEmpty(t, m4.WrappedSessionKey)
	require.Equal(t, "four", open(t, amy, m4, "zed"))
	a2 := seal(t, amy, "zed", "hi again")
	require.Equal(t, "hi again", open(t, zed, a2, "amy"))

	ka, _ := amy.CachedKey("zed")
	kz, _ := zed.CachedKey("amy")
	require.Equal(t, ka, kz)
	m5 := seal(t, zed, "amy", "five")
	require.Empty(t, m5.WrappedSessionKey)
	require.Equal(t, "five", open(t, amy, m5, "zed"))
}

func TestOutgoingKey_CancelledCallerStillGetsKey(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sk, err := alice.GetOrCreateOutgoingKey(ctx, "bob")
	require.NoError(t, err)
	require.True(t, sk.PendingWrap)
	require.NotEmpty(t, sk.WrappedForPeer)
}

func TestIncomingKey_PeerRekeyReplacesLearnedKey(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	bob := newManager(dir, "bob")

	alice1 := newManager(dir, "alice")
	open(t, bob, seal(t, alice1, "bob", "before restart"), "alice")
	before, _ := bob.CachedKey("alice")

	// Alice restarts and loses her volatile keys.
	alice2 := newManager(dir, "alice")
	require.Equal(t, "after restart", open(t, bob, seal(t, alice2, "bob", "after restart"), "alice"))
	after, _ := bob.CachedKey("alice")
	require.NotEqual(t, before, after)
}

func TestClear(t *testing.T) {
	dir := testkit.NewDirectory(t, "alice", "bob")
	alice := newManager(dir, "alice")
	seal(t, alice, "bob", "x")

	alice.Clear()
	_, ok := alice.CachedKey("bob")
	require.False(t, ok)

	// A fresh key is created and wrapped again after logout/login.
	require.NotEmpty(t, seal(t, alice, "bob", "y").WrappedSessionKey)
}
