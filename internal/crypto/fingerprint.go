package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"

	"parley/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes the SPKI DER with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub *rsa.PublicKey) (domain.Fingerprint, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", domain.CryptoError("fingerprint", err)
	}
	sum := sha256.Sum256(der)
	return domain.Fingerprint(hex.EncodeToString(sum[:10])), nil
}
