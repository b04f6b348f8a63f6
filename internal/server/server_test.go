package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
	"parley/internal/presence"
	"parley/internal/router"
	"parley/internal/store/boltstore"
)

type harness struct {
	t   *testing.T
	srv *httptest.Server
	hub *presence.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := boltstore.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	metrics := NewMetrics()
	hub := presence.NewHub(db, presence.WithMetrics(metrics))
	rt := router.New(db, db, hub, router.WithMetrics(metrics))
	s := New(Deps{
		Users:    db,
		Messages: db,
		Groups:   db,
		Hub:      hub,
		Router:   rt,
		Auth:     NewAuth("test-secret", time.Hour),
		Metrics:  metrics,
		Log:      log,
	}, Options{RSABits: 1024})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return &harness{t: t, srv: srv, hub: hub}
}

func (h *harness) do(method, path, token string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) signup(name string) domain.Session {
	h.t.Helper()
	var sess domain.Session
	code := h.do(http.MethodPost, "/api/auth/signup", "", domain.Signup{
		FullName: name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "hunter22",
	}, &sess)
	require.Equal(h.t, http.StatusCreated, code)
	require.NotEmpty(h.t, sess.Token)
	return sess
}

func (h *harness) dial(token string) *websocket.Conn {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { _ = c.Close() })
	return c
}

// expect reads events until one called name arrives.
func expect(t *testing.T, c *websocket.Conn, name string) domain.Event {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev domain.Event
		require.NoError(t, c.ReadJSON(&ev))
		if ev.Name == name {
			return ev
		}
	}
}

func TestSignupLoginAndKeys(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")

	var dup errorBody
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/auth/signup", "", domain.Signup{
		FullName: "Alice Again", Email: "alice@example.com", Password: "hunter22",
	}, &dup))

	var sess domain.Session
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/auth/login", "", domain.Login{
		Email: "alice@example.com", Password: "hunter22",
	}, &sess))
	assert.Equal(t, alice.User.ID, sess.User.ID)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/auth/login", "", domain.Login{
		Email: "alice@example.com", Password: "wrong-password",
	}, nil))

	var pub map[string]string
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages/publickey/"+alice.User.ID.String(), sess.Token, nil, &pub))
	assert.Contains(t, pub["publicKey"], "BEGIN PUBLIC KEY")

	var priv map[string]string
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages/privatekey/me", sess.Token, nil, &priv))
	assert.Contains(t, priv["privateKey"], "PRIVATE KEY")

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/messages/privatekey/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", "garbage", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/messages/publickey/nobody", sess.Token, nil, nil))
}

func TestSendDeliversOverWebSocket(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")
	bob := h.signup("Bob")

	ws := h.dial(bob.Token)
	var online []domain.UserID
	require.NoError(t, expect(t, ws, domain.EventOnlineUsers).Decode(&online))
	assert.Contains(t, online, bob.User.ID)

	var sent domain.Message
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/messages/send/"+bob.User.ID.String(), alice.Token,
		domain.OutgoingEnvelope{Text: "hello"}, &sent))

	var got domain.Message
	require.NoError(t, expect(t, ws, domain.EventNewMessage).Decode(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, alice.User.ID, got.SenderID)

	var history []domain.Message
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages/"+alice.User.ID.String(), bob.Token, nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)
}

func TestEditAndDeleteOnlyBySender(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")
	bob := h.signup("Bob")

	var sent domain.Message
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/messages/send/"+bob.User.ID.String(), alice.Token,
		domain.OutgoingEnvelope{Text: "draft"}, &sent))

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/api/messages/edit/"+sent.ID.String(), bob.Token,
		editBody{Text: "hijack"}, nil))

	var edited domain.Message
	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/api/messages/edit/"+sent.ID.String(), alice.Token,
		editBody{Text: "final"}, &edited))
	assert.True(t, edited.Edited)
	assert.Equal(t, "final", edited.Text)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/api/messages/delete/"+sent.ID.String(), bob.Token, nil, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/api/messages/delete/"+sent.ID.String(), alice.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/messages/delete/"+sent.ID.String(), alice.Token, nil, nil))
}

func TestTypingRelayedToTarget(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")
	bob := h.signup("Bob")

	bobWS := h.dial(bob.Token)
	expect(t, bobWS, domain.EventOnlineUsers)
	aliceWS := h.dial(alice.Token)

	start, err := domain.NewEvent(domain.EventStartTyping, domain.TypingTarget{ReceiverID: bob.User.ID})
	require.NoError(t, err)
	require.NoError(t, aliceWS.WriteJSON(start))

	var notice domain.TypingNotice
	require.NoError(t, expect(t, bobWS, domain.EventUserTyping).Decode(&notice))
	assert.Equal(t, alice.User.ID, notice.SenderID)

	require.NoError(t, aliceWS.Close())
	require.NoError(t, expect(t, bobWS, domain.EventUserStopTyping).Decode(&notice))
	assert.Equal(t, alice.User.ID, notice.SenderID)
}

func TestGroupLifecycle(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")
	bob := h.signup("Bob")
	carol := h.signup("Carol")

	var g domain.Group
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/groups/create", alice.Token, domain.NewGroup{
		Name:    "ops",
		Members: []domain.UserID{bob.User.ID},
	}, &g))
	assert.Equal(t, alice.User.ID, g.Admin)
	assert.ElementsMatch(t, []domain.UserID{alice.User.ID, bob.User.ID}, g.Members)

	base := "/api/groups/" + g.ID.String()
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, base+"/add-members", bob.Token,
		domain.MemberChange{Members: []domain.UserID{carol.User.ID}}, nil))
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/add-members", alice.Token,
		domain.MemberChange{Members: []domain.UserID{carol.User.ID}}, &g))
	assert.Len(t, g.Members, 3)

	carolWS := h.dial(carol.Token)
	var sent domain.Message
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/group-messages/send/"+g.ID.String(), bob.Token,
		domain.OutgoingEnvelope{Text: "standup in 5"}, &sent))
	var got domain.Message
	require.NoError(t, expect(t, carolWS, domain.EventNewGroupMessage).Decode(&got))
	assert.Equal(t, sent.ID, got.ID)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/leave-group", carol.Token, nil, nil))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/group-messages/"+g.ID.String(), carol.Token, nil, nil))

	var mine []domain.Group
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/groups/my-groups", bob.Token, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, g.ID, mine[0].ID)
}

func TestPinAndArchive(t *testing.T) {
	h := newHarness(t)
	alice := h.signup("Alice")
	bob := h.signup("Bob")

	peer := bob.User.ID.String()
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/messages/pin/"+peer, alice.Token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/messages/pin/"+peer, alice.Token, nil, nil))

	var pinned []domain.PublicUser
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages/pinned/chats", alice.Token, nil, &pinned))
	require.Len(t, pinned, 1)
	assert.Equal(t, bob.User.ID, pinned[0].ID)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/messages/archive/"+peer, alice.Token, nil, nil))
	var archived []domain.PublicUser
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/messages/archived/chats", alice.Token, nil, &archived))
	assert.Len(t, archived, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.signup("Alice")

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "parley_http_requests_total")
}
