package types

// SymmetricKeySize is the AES-256 key length in bytes.
const SymmetricKeySize = 32

// SymmetricKey is a raw AES-256 key.
type SymmetricKey [SymmetricKeySize]byte

// Identity is a user's long-term RSA key pair in PEM form.
//
// PublicKeyPEM holds an SPKI "PUBLIC KEY" block, PrivateKeyPEM a PKCS8
// "PRIVATE KEY" block. The private half is only ever handed to its owner.
type Identity struct {
	ID            UserID `json:"id"`
	PublicKeyPEM  string `json:"publicKey"`
	PrivateKeyPEM string `json:"privateKey,omitempty"`
}

// SessionKey is the symmetric key shared with one peer.
//
// WrappedForPeer is Key encrypted under the peer's public key (base64). It
// travels on the next outgoing envelope while PendingWrap is set.
type SessionKey struct {
	PeerID         UserID
	Key            SymmetricKey
	WrappedForPeer string
	PendingWrap    bool
}
