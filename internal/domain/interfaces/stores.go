package interfaces

import (
	"context"
	"time"

	domaintypes "parley/internal/domain/types"
)

// UserStore persists accounts and their per-user chat preferences.
type UserStore interface {
	CreateUser(ctx context.Context, u domaintypes.User) (domaintypes.User, error)
	GetUser(ctx context.Context, id domaintypes.UserID) (domaintypes.User, error)
	GetUserByEmail(ctx context.Context, email string) (domaintypes.User, error)
	ListUsers(ctx context.Context, except domaintypes.UserID) ([]domaintypes.User, error)

	SetPinned(ctx context.Context, id, peer domaintypes.UserID, pinned bool) (domaintypes.User, error)
	SetArchived(ctx context.Context, id, peer domaintypes.UserID, archived bool) (domaintypes.User, error)
}

// LastSeenStore records when a user's last connection closed.
type LastSeenStore interface {
	SetLastSeen(ctx context.Context, id domaintypes.UserID, at time.Time) error
}

// MessageStore persists direct and group messages in creation order.
type MessageStore interface {
	SaveMessage(ctx context.Context, m domaintypes.Message) (domaintypes.Message, error)
	GetMessage(ctx context.Context, id domaintypes.MessageID) (domaintypes.Message, error)
	UpdateMessage(ctx context.Context, m domaintypes.Message) error
	Conversation(ctx context.Context, a, b domaintypes.UserID) ([]domaintypes.Message, error)
	GroupConversation(ctx context.Context, id domaintypes.GroupID) ([]domaintypes.Message, error)
}

// GroupStore persists groups and their membership.
type GroupStore interface {
	CreateGroup(ctx context.Context, g domaintypes.Group) (domaintypes.Group, error)
	GetGroup(ctx context.Context, id domaintypes.GroupID) (domaintypes.Group, error)
	AddMembers(ctx context.Context, id domaintypes.GroupID, members []domaintypes.UserID) (domaintypes.Group, error)
	RemoveMembers(ctx context.Context, id domaintypes.GroupID, members []domaintypes.UserID) (domaintypes.Group, error)
	GroupsFor(ctx context.Context, member domaintypes.UserID) ([]domaintypes.Group, error)
}
