package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"parley/internal/domain"
)

// IVSize is the GCM nonce length used for every message.
const IVSize = 12

// maxPlaintext is the GCM limit for a single message, 2^39-256 bits.
const maxPlaintext = (1<<39 - 256) / 8

// Sealed is the raw output of Encrypt.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
}

// GenerateSymmetricKey returns 32 bytes from the CSPRNG.
func GenerateSymmetricKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if _, err := rand.Read(k[:]); err != nil {
		return domain.SymmetricKey{}, domain.CryptoError("generate session key", err)
	}
	return k, nil
}

// SymmetricKeyFromBytes copies raw into a SymmetricKey, rejecting any length but 32.
func SymmetricKeyFromBytes(raw []byte) (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if len(raw) != len(k) {
		return k, domain.CryptoError("bad session key length", nil)
	}
	copy(k[:], raw)
	return k, nil
}

// Encrypt seals plaintext under key with a fresh random IV.
func Encrypt(plaintext string, key domain.SymmetricKey) (Sealed, error) {
	if uint64(len(plaintext)) > maxPlaintext {
		return Sealed{}, domain.CryptoError("plaintext too large", nil)
	}
	aead, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, domain.CryptoError("generate iv", err)
	}
	return Sealed{
		Ciphertext: aead.Seal(nil, iv, []byte(plaintext), nil),
		IV:         iv,
	}, nil
}

// Decrypt opens ciphertext sealed by Encrypt.
func Decrypt(ciphertext, iv []byte, key domain.SymmetricKey) (string, error) {
	if len(iv) != IVSize {
		return "", domain.CryptoError("bad iv length", nil)
	}
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", domain.CryptoError("authentication failed", err)
	}
	return string(pt), nil
}

func newGCM(key domain.SymmetricKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, domain.CryptoError("aes cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.CryptoError("gcm mode", err)
	}
	return aead, nil
}
