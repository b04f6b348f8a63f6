// Package keystore resolves the RSA keys used to wrap session keys.
//
// It fetches the local private key and peers' public keys from the key
// directory, parses them once and caches them for the lifetime of the login.
// Optionally the private key is cached on disk, encrypted under a passphrase,
// through a domain.IdentityStore.
package keystore
