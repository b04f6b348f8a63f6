package interfaces

import (
	"context"

	domaintypes "parley/internal/domain/types"
)

// Transport is a live event connection to the server.
//
// Events is closed when the connection ends. Emit fails with a transport
// error once the connection is gone.
type Transport interface {
	Events() <-chan domaintypes.Event
	Emit(ctx context.Context, name string, payload any) error
	Close() error
}

// MessageAPI posts and lists direct messages.
type MessageAPI interface {
	SendMessage(ctx context.Context, peer domaintypes.UserID, env domaintypes.OutgoingEnvelope) (domaintypes.Message, error)
	Conversation(ctx context.Context, peer domaintypes.UserID) ([]domaintypes.Message, error)
}

// RelayClient is the full client view of the server API.
type RelayClient interface {
	KeyDirectory
	MessageAPI

	Signup(ctx context.Context, req domaintypes.Signup) (domaintypes.Session, error)
	Login(ctx context.Context, req domaintypes.Login) (domaintypes.Session, error)
	Me(ctx context.Context) (domaintypes.PublicUser, error)
	Users(ctx context.Context) ([]domaintypes.PublicUser, error)

	EditMessage(ctx context.Context, id domaintypes.MessageID, text string) (domaintypes.Message, error)
	DeleteMessage(ctx context.Context, id domaintypes.MessageID) error

	Pin(ctx context.Context, peer domaintypes.UserID) error
	Unpin(ctx context.Context, peer domaintypes.UserID) error
	Archive(ctx context.Context, peer domaintypes.UserID) error
	Unarchive(ctx context.Context, peer domaintypes.UserID) error
	Pinned(ctx context.Context) ([]domaintypes.PublicUser, error)
	Archived(ctx context.Context) ([]domaintypes.PublicUser, error)

	CreateGroup(ctx context.Context, req domaintypes.NewGroup) (domaintypes.Group, error)
	AddMembers(ctx context.Context, id domaintypes.GroupID, members []domaintypes.UserID) (domaintypes.Group, error)
	LeaveGroup(ctx context.Context, id domaintypes.GroupID) error
	MyGroups(ctx context.Context) ([]domaintypes.Group, error)
	SendGroupMessage(ctx context.Context, id domaintypes.GroupID, text string) (domaintypes.Message, error)
	GroupConversation(ctx context.Context, id domaintypes.GroupID) ([]domaintypes.Message, error)

	Dial(ctx context.Context) (Transport, error)
}
