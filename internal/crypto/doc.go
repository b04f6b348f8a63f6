// Package crypto exposes the primitives behind Parley's message encryption.
//
// Contents
//
//   - AES-256-GCM symmetric encryption with a fresh 12-byte IV per message
//     (GenerateSymmetricKey, Encrypt, Decrypt)
//   - RSA-OAEP/SHA-256 wrapping of session keys (WrapKey, UnwrapKey)
//   - RSA identity generation and PEM codecs, SPKI for public keys and PKCS8
//     for private keys (GenerateRSA, MarshalPublicKeyPEM, ParsePrivateKeyPEM, ...)
//   - Base64 envelope helpers (SealEnvelope, OpenEnvelope)
//   - Short public-key fingerprints for display (Fingerprint)
//   - Best-effort memory wiping for key material (Wipe)
//
// # Errors
//
// Every failure is reported as a domain error with code CRYPTO, so callers can
// test with errors.Is(err, domain.ErrCrypto).
package crypto
