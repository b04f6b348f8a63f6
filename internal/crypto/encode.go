package crypto

import (
	"encoding/base64"

	"parley/internal/domain"
)

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// FromB64 decodes standard base64, reporting failures as crypto errors.
func FromB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.CryptoError("base64 decode", err)
	}
	return b, nil
}

// SealEnvelope encrypts plaintext into its wire form. wrapped, when non-nil,
// is attached as the envelope's wrappedSessionKey.
func SealEnvelope(plaintext string, key domain.SymmetricKey, wrapped []byte) (domain.EncryptedEnvelope, error) {
	s, err := Encrypt(plaintext, key)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	env := domain.EncryptedEnvelope{
		Ciphertext: B64(s.Ciphertext),
		IV:         B64(s.IV),
	}
	if len(wrapped) > 0 {
		env.WrappedSessionKey = B64(wrapped)
	}
	return env, nil
}

// OpenEnvelope decodes and decrypts env with key. The wrapped key, if any, is ignored.
func OpenEnvelope(env domain.EncryptedEnvelope, key domain.SymmetricKey) (string, error) {
	ct, err := FromB64(env.Ciphertext)
	if err != nil {
		return "", err
	}
	iv, err := FromB64(env.IV)
	if err != nil {
		return "", err
	}
	return Decrypt(ct, iv, key)
}
