package router_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
	"parley/internal/presence"
	"parley/internal/router"
)

type memMessages struct {
	mu   sync.Mutex
	byID map[domain.MessageID]domain.Message
	fail error
}

func (s *memMessages) SaveMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return domain.Message{}, s.fail
	}
	if s.byID == nil {
		s.byID = make(map[domain.MessageID]domain.Message)
	}
	s.byID[m.ID] = m
	return m, nil
}

func (s *memMessages) GetMessage(_ context.Context, id domain.MessageID) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.Message{}, domain.NotFound("message not found")
	}
	return m, nil
}

func (s *memMessages) UpdateMessage(_ context.Context, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	return nil
}

func (s *memMessages) Conversation(context.Context, domain.UserID, domain.UserID) ([]domain.Message, error) {
	return nil, nil
}

func (s *memMessages) GroupConversation(context.Context, domain.GroupID) ([]domain.Message, error) {
	return nil, nil
}

type memGroups struct{ groups map[domain.GroupID]domain.Group }

func (g memGroups) CreateGroup(_ context.Context, grp domain.Group) (domain.Group, error) {
	g.groups[grp.ID] = grp
	return grp, nil
}

func (g memGroups) GetGroup(_ context.Context, id domain.GroupID) (domain.Group, error) {
	grp, ok := g.groups[id]
	if !ok {
		return domain.Group{}, domain.NotFound("group not found")
	}
	return grp, nil
}

func (g memGroups) AddMembers(context.Context, domain.GroupID, []domain.UserID) (domain.Group, error) {
	return domain.Group{}, errors.New("unused")
}

func (g memGroups) RemoveMembers(context.Context, domain.GroupID, []domain.UserID) (domain.Group, error) {
	return domain.Group{}, errors.New("unused")
}

func (g memGroups) GroupsFor(context.Context, domain.UserID) ([]domain.Group, error) { return nil, nil }

type conn struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *conn) Send(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *conn) Close() error { return nil }

// of returns the events named name.
func (c *conn) of(name string) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, ev := range c.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	msgs   *memMessages
	hub    *presence.Hub
	router *router.Router
	conns  map[domain.UserID]*conn
}

func newFixture(t *testing.T, online ...domain.UserID) *fixture {
	t.Helper()
	f := &fixture{
		msgs:  &memMessages{},
		hub:   presence.NewHub(nil),
		conns: make(map[domain.UserID]*conn),
	}
	groups := memGroups{groups: map[domain.GroupID]domain.Group{
		"g1": {ID: "g1", Name: "team", Admin: "alice", Members: []domain.UserID{"alice", "bob", "carol", "dave"}},
	}}
	f.router = router.New(f.msgs, groups, f.hub)
	for _, id := range online {
		c := &conn{}
		_, err := f.hub.Connect(id, c)
		require.NoError(t, err)
		f.conns[id] = c
	}
	return f
}

var envelope = &domain.EncryptedEnvelope{Ciphertext: "AAAA", IV: "AAAAAAAAAAAAAAAA"}

func TestRoute_PersistsThenPushesToReceiver(t *testing.T) {
	f := newFixture(t, "alice", "bob")

	saved, err := f.router.Route(context.Background(), domain.Message{
		SenderID: "alice", ReceiverID: "bob", EncryptedText: envelope, IsEncrypted: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.False(t, saved.CreatedAt.IsZero())

	_, err = f.msgs.GetMessage(context.Background(), saved.ID)
	require.NoError(t, err)

	got := f.conns["bob"].of(domain.EventNewMessage)
	require.Len(t, got, 1)
	var m domain.Message
	require.NoError(t, got[0].Decode(&m))
	assert.Equal(t, saved.ID, m.ID)
	assert.Equal(t, *envelope, *m.EncryptedText)
	assert.Empty(t, f.conns["alice"].of(domain.EventNewMessage))
}

func TestRoute_OfflineReceiverNotQueued(t *testing.T) {
	f := newFixture(t, "alice")
	saved, err := f.router.Route(context.Background(), domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.NoError(t, err)

	// Bob connects afterwards and gets only the presence broadcast.
	c := &conn{}
	_, err = f.hub.Connect("bob", c)
	require.NoError(t, err)
	require.Empty(t, c.of(domain.EventNewMessage))

	_, err = f.msgs.GetMessage(context.Background(), saved.ID)
	require.NoError(t, err)
}

func TestRoute_StorageFailureAborts(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.msgs.fail = errors.New("disk full")

	_, err := f.router.Route(context.Background(), domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.Error(t, err)
	require.Empty(t, f.conns["bob"].of(domain.EventNewMessage))
}

func TestRoute_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		msg  domain.Message
	}{
		{"no receiver", domain.Message{SenderID: "a", Text: "x"}},
		{"self", domain.Message{SenderID: "a", ReceiverID: "a", Text: "x"}},
		{"empty", domain.Message{SenderID: "a", ReceiverID: "b"}},
		{"both bodies", domain.Message{SenderID: "a", ReceiverID: "b", Text: "x", EncryptedText: envelope, IsEncrypted: true}},
		{"envelope without flag", domain.Message{SenderID: "a", ReceiverID: "b", Text: "x", EncryptedText: envelope}},
		{"flag without envelope", domain.Message{SenderID: "a", ReceiverID: "b", IsEncrypted: true}},
		{"short iv", domain.Message{SenderID: "a", ReceiverID: "b", IsEncrypted: true,
			EncryptedText: &domain.EncryptedEnvelope{Ciphertext: "AAAA", IV: "AAAA"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.router.Route(ctx, tt.msg)
			require.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestRouteGroup_FansOutExceptSender(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "eve")
	ctx := context.Background()

	_, err := f.router.RouteGroup(ctx, domain.Message{SenderID: "alice", GroupID: "g1", Text: "standup"})
	require.NoError(t, err)

	assert.Empty(t, f.conns["alice"].of(domain.EventNewGroupMessage))
	assert.Len(t, f.conns["bob"].of(domain.EventNewGroupMessage), 1)
	assert.Len(t, f.conns["carol"].of(domain.EventNewGroupMessage), 1)
	assert.Empty(t, f.conns["eve"].of(domain.EventNewGroupMessage))

	_, err = f.router.RouteGroup(ctx, domain.Message{SenderID: "eve", GroupID: "g1", Text: "let me in"})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.router.RouteGroup(ctx, domain.Message{SenderID: "alice", GroupID: "nope", Text: "x"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRouteGroup_RejectsEncryptedBody(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	_, err := f.router.RouteGroup(ctx, domain.Message{
		SenderID:      "alice",
		GroupID:       "g1",
		IsEncrypted:   true,
		EncryptedText: envelope,
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, f.conns["bob"].of(domain.EventNewGroupMessage))
	assert.Empty(t, f.msgs.byID)
}

func TestEditAndDelete(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	saved, err := f.router.Route(ctx, domain.Message{SenderID: "alice", ReceiverID: "bob", EncryptedText: envelope, IsEncrypted: true})
	require.NoError(t, err)

	_, err = f.router.Edit(ctx, "bob", saved.ID, "hijack")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	edited, err := f.router.Edit(ctx, "alice", saved.ID, "fixed typo")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, edited.ID)
	assert.Equal(t, "fixed typo", edited.Text)
	assert.False(t, edited.IsEncrypted)
	assert.True(t, edited.Edited)

	updates := f.conns["bob"].of(domain.EventMessageUpdated)
	require.Len(t, updates, 1)
	require.Len(t, f.conns["alice"].of(domain.EventMessageUpdated), 1)

	require.NoError(t, f.router.Delete(ctx, "alice", saved.ID))
	dels := f.conns["bob"].of(domain.EventMessageDeleted)
	require.Len(t, dels, 1)
	var del domain.DeletedMessage
	require.NoError(t, dels[0].Decode(&del))
	assert.Equal(t, saved.ID, del.ID)

	stored, err := f.msgs.GetMessage(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
	assert.Empty(t, stored.Text)

	require.ErrorIs(t, f.router.Delete(ctx, "alice", saved.ID), domain.ErrNotFound)
}
