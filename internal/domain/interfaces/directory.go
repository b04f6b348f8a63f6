package interfaces

import (
	"context"

	domaintypes "parley/internal/domain/types"
)

// KeyDirectory serves PEM-encoded identity keys.
type KeyDirectory interface {
	// PublicKey returns the SPKI PEM public key of id.
	PublicKey(ctx context.Context, id domaintypes.UserID) (string, error)
	// PrivateKey returns the PKCS8 PEM private key of the authenticated caller.
	PrivateKey(ctx context.Context) (string, error)
}
