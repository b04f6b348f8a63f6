package types

// UserID identifies a registered account.
type UserID string

// String returns the string form of the user identifier.
func (id UserID) String() string { return string(id) }

// ConnectionID identifies one live socket of a user.
type ConnectionID string

// String returns the string form of the connection identifier.
func (id ConnectionID) String() string { return string(id) }

// MessageID identifies a persisted message.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }

// GroupID identifies a chat group.
type GroupID string

// String returns the string form of the group identifier.
func (id GroupID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
