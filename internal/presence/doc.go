// Package presence tracks which users are connected and who is typing to whom.
//
// A Hub maps each online user to all of their live connections (several tabs
// or devices), broadcasts the online set on every connect and disconnect,
// relays typing indicators, and records a user's last-seen time when their
// final connection closes. All state changes and the events they produce
// happen inside one critical section, so observers see them in order.
package presence
