// Package message is the client-side chat session controller.
//
// It encrypts outgoing text for a peer, falling back to plaintext with a
// warning when encryption is impossible, and decrypts incoming envelopes,
// rendering a fixed placeholder when they cannot be opened. Run consumes the
// live event stream of a Transport and keeps the online set and typing
// indicators current.
package message
