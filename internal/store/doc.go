// Package store provides file-based persistence for the Parley client.
//
// It contains concrete implementations of the client-side domain storage
// interfaces, serialising data as JSON under the user's configured home
// directory. All methods are concurrency-safe via internal locking, and every
// write goes through a temp file and rename.
//
// The package includes stores for:
//   - The cached RSA identity, sealed under a passphrase (IdentityFileStore)
//   - Per-server login profiles and tokens (AccountFileStore)
//
// Server-side persistence lives in the boltstore subpackage.
package store
