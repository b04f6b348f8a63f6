package interfaces

import (
	"context"
	"crypto/rsa"

	domaintypes "parley/internal/domain/types"
)

// KeyStore resolves identity keys and caches them for the session.
type KeyStore interface {
	PublicKey(ctx context.Context, id domaintypes.UserID) (*rsa.PublicKey, error)
	PrivateKey(ctx context.Context) (*rsa.PrivateKey, error)
	Clear()
}

// SessionKeyManager owns the per-peer symmetric keys.
type SessionKeyManager interface {
	GetOrCreateOutgoingKey(ctx context.Context, peer domaintypes.UserID) (domaintypes.SessionKey, error)
	MarkWrapSent(peer domaintypes.UserID, key domaintypes.SymmetricKey)
	ResolveIncomingKey(ctx context.Context, env domaintypes.EncryptedEnvelope, sender domaintypes.UserID) (domaintypes.SymmetricKey, error)
	CachedKey(peer domaintypes.UserID) (domaintypes.SymmetricKey, bool)
	Clear()
}

// MessageService turns plaintext into wire envelopes and back.
type MessageService interface {
	SendText(ctx context.Context, peer domaintypes.UserID, plaintext string) domaintypes.OutgoingEnvelope
	ReceiveText(ctx context.Context, env domaintypes.EncryptedEnvelope, sender domaintypes.UserID) string
	ReceiveHistory(ctx context.Context, msgs []domaintypes.Message) []domaintypes.DisplayMessage
}

// Pusher delivers an event to every live connection of a user and reports
// how many connections accepted it.
type Pusher interface {
	SendToUser(id domaintypes.UserID, ev domaintypes.Event) int
}
