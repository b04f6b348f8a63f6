// Package session manages the symmetric session key shared with each peer.
//
// Outgoing keys are created on first send, wrapped under the peer's RSA
// public key, and the wrap travels on exactly the next envelope. Incoming
// wrapped keys are unwrapped with the local private key and always become
// the key that decrypts the sender's wrap-less envelopes. A learned key also
// becomes the outgoing key, and is wrapped again on its first use here. When
// both sides created a key concurrently, both end up sending with the key of
// the lexically lower user id.
//
// Keys live in memory only and are wiped by Clear (logout).
package session
