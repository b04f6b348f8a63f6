package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"parley/internal/domain"
)

// DefaultRSABits is the modulus size of generated identities.
const DefaultRSABits = 2048

const (
	pemPublic  = "PUBLIC KEY"
	pemPrivate = "PRIVATE KEY"
)

// GenerateRSA creates a new identity key pair.
func GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultRSABits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, domain.CryptoError("generate rsa key", err)
	}
	return priv, nil
}

// MaxWrapSize returns the largest payload WrapKey accepts for pub: k - 2*hLen - 2.
func MaxWrapSize(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// WrapKey encrypts raw to pub with RSA-OAEP/SHA-256 and an empty label.
func WrapKey(raw []byte, pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, domain.CryptoError("wrap key: nil public key", nil)
	}
	if len(raw) > MaxWrapSize(pub) {
		return nil, domain.CryptoError("wrap key: payload too large", nil)
	}
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, raw, nil)
	if err != nil {
		return nil, domain.CryptoError("wrap key", err)
	}
	return out, nil
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, domain.CryptoError("unwrap key: nil private key", nil)
	}
	out, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, domain.CryptoError("unwrap key", err)
	}
	return out, nil
}

// MarshalPublicKeyPEM encodes pub as an SPKI PEM block.
func MarshalPublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", domain.CryptoError("marshal public key", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublic, Bytes: der})), nil
}

// MarshalPrivateKeyPEM encodes priv as a PKCS8 PEM block.
func MarshalPrivateKeyPEM(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", domain.CryptoError("marshal private key", err)
	}
	defer Wipe(der)
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPrivate, Bytes: der})), nil
}

// ParsePublicKeyPEM decodes an SPKI PEM block holding an RSA key.
func ParsePublicKeyPEM(s string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil || block.Type != pemPublic {
		return nil, domain.CryptoError("parse public key: no PUBLIC KEY block", nil)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, domain.CryptoError("parse public key", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, domain.CryptoError("parse public key: not RSA", nil)
	}
	return pub, nil
}

// ParsePrivateKeyPEM decodes a PKCS8 PEM block holding an RSA key.
func ParsePrivateKeyPEM(s string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil || block.Type != pemPrivate {
		return nil, domain.CryptoError("parse private key: no PRIVATE KEY block", nil)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, domain.CryptoError("parse private key", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.CryptoError("parse private key: not RSA", nil)
	}
	return priv, nil
}

// NewIdentity generates a key pair and returns it PEM encoded for id.
func NewIdentity(id domain.UserID, bits int) (domain.Identity, error) {
	priv, err := GenerateRSA(bits)
	if err != nil {
		return domain.Identity{}, err
	}
	pubPEM, err := MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return domain.Identity{}, err
	}
	privPEM, err := MarshalPrivateKeyPEM(priv)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: id, PublicKeyPEM: pubPEM, PrivateKeyPEM: privPEM}, nil
}
