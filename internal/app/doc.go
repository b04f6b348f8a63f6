// Package app wires the relay daemon and the chat client.
//
// Server builds the bolt store, presence hub, router and HTTP server from a
// ServerConfig and runs them until the context ends. Client builds the local
// stores and the relay API for the CLI, and opens a Session for the logged-in
// user with its key store, session keys and message service.
package app
