package crypto_test

import (
	"bytes"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"testing"

	"parley/internal/crypto"
	"parley/internal/domain"
)

var (
	rsaOnce sync.Once
	rsaKeys [2]*rsa.PrivateKey
)

// testKeys returns two RSA-2048 key pairs shared across the package tests.
func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	rsaOnce.Do(func() {
		for i := range rsaKeys {
			k, err := crypto.GenerateRSA(crypto.DefaultRSABits)
			if err != nil {
				panic(err)
			}
			rsaKeys[i] = k
		}
	})
	return rsaKeys[0], rsaKeys[1]
}

func mustKey(t *testing.T) domain.SymmetricKey {
	t.Helper()
	k, err := crypto.GenerateSymmetricKey()
	if err != nil {
		t.Fatalf("GenerateSymmetricKey: %v", err)
	}
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := mustKey(t)
	for _, msg := range []string{"", "hello", "héllo wörld ✓", strings.Repeat("x", 64<<10)} {
		s, err := crypto.Encrypt(msg, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if len(s.IV) != crypto.IVSize {
			t.Fatalf("iv length = %d, want %d", len(s.IV), crypto.IVSize)
		}
		got, err := crypto.Decrypt(s.Ciphertext, s.IV, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != msg {
			t.Fatalf("got %q, want %q", got, msg)
		}
	}
}

func TestEncrypt_FreshIVEachCall(t *testing.T) {
	key := mustKey(t)
	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		s, err := crypto.Encrypt("same text", key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if _, dup := seen[string(s.IV)]; dup {
			t.Fatalf("iv repeated after %d encryptions", i)
		}
		seen[string(s.IV)] = struct{}{}
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	key := mustKey(t)
	s, err := crypto.Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	for i := range s.Ciphertext {
		ct := bytes.Clone(s.Ciphertext)
		ct[i] ^= 0x01
		if _, err := crypto.Decrypt(ct, s.IV, key); !errors.Is(err, domain.ErrCrypto) {
			t.Fatalf("byte %d flipped: err = %v, want crypto error", i, err)
		}
	}

	iv := bytes.Clone(s.IV)
	iv[0] ^= 0xff
	if _, err := crypto.Decrypt(s.Ciphertext, iv, key); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("iv flipped: err = %v, want crypto error", err)
	}
}

func TestDecrypt_WrongKeyAndBadIV(t *testing.T) {
	key := mustKey(t)
	s, err := crypto.Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := crypto.Decrypt(s.Ciphertext, s.IV, mustKey(t)); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("wrong key: err = %v", err)
	}
	if _, err := crypto.Decrypt(s.Ciphertext, s.IV[:8], key); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("short iv: err = %v", err)
	}
}

func TestSymmetricKeyFromBytes_Length(t *testing.T) {
	if _, err := crypto.SymmetricKeyFromBytes(make([]byte, 16)); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("16 bytes: err = %v, want crypto error", err)
	}
	raw := bytes.Repeat([]byte{7}, 32)
	k, err := crypto.SymmetricKeyFromBytes(raw)
	if err != nil {
		t.Fatalf("SymmetricKeyFromBytes: %v", err)
	}
	if !bytes.Equal(k[:], raw) {
		t.Fatal("key bytes differ from input")
	}
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	priv, other := testKeys(t)
	key := mustKey(t)

	wrapped, err := crypto.WrapKey(key[:], &priv.PublicKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	got, err := crypto.UnwrapKey(wrapped, priv)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(got, key[:]) {
		t.Fatal("unwrapped key differs")
	}

	if _, err := crypto.UnwrapKey(wrapped, other); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("wrong private key: err = %v, want crypto error", err)
	}
	if _, err := crypto.UnwrapKey([]byte("garbage"), priv); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("malformed: err = %v, want crypto error", err)
	}
}

func TestWrapKey_SizeLimit(t *testing.T) {
	priv, _ := testKeys(t)
	if got := crypto.MaxWrapSize(&priv.PublicKey); got != 190 {
		t.Fatalf("MaxWrapSize = %d, want 190", got)
	}
	if _, err := crypto.WrapKey(make([]byte, 190), &priv.PublicKey); err != nil {
		t.Fatalf("190 bytes: %v", err)
	}
	if _, err := crypto.WrapKey(make([]byte, 191), &priv.PublicKey); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("191 bytes: err = %v, want crypto error", err)
	}
}

func TestPEM_RoundTrip(t *testing.T) {
	priv, _ := testKeys(t)

	pubPEM, err := crypto.MarshalPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPublicKeyPEM: %v", err)
	}
	if !strings.HasPrefix(pubPEM, "-----BEGIN PUBLIC KEY-----") {
		t.Fatalf("unexpected public PEM header: %q", pubPEM[:30])
	}
	pub, err := crypto.ParsePublicKeyPEM(pubPEM)
	if err != nil {
		t.Fatalf("ParsePublicKeyPEM: %v", err)
	}
	if !pub.Equal(&priv.PublicKey) {
		t.Fatal("public key mismatch")
	}

	privPEM, err := crypto.MarshalPrivateKeyPEM(priv)
	if err != nil {
		t.Fatalf("MarshalPrivateKeyPEM: %v", err)
	}
	back, err := crypto.ParsePrivateKeyPEM(privPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKeyPEM: %v", err)
	}
	if !back.Equal(priv) {
		t.Fatal("private key mismatch")
	}

	if _, err := crypto.ParsePublicKeyPEM(privPEM); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("private PEM as public: err = %v", err)
	}
	if _, err := crypto.ParsePrivateKeyPEM("not pem"); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("garbage: err = %v", err)
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	key := mustKey(t)
	env, err := crypto.SealEnvelope("hello", key, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("SealEnvelope: %v", err)
	}
	if env.WrappedSessionKey != "AQID" {
		t.Fatalf("wrapped = %q", env.WrappedSessionKey)
	}
	got, err := crypto.OpenEnvelope(env, key)
	if err != nil {
		t.Fatalf("OpenEnvelope: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q", got)
	}

	env.IV = "%%%"
	if _, err := crypto.OpenEnvelope(env, key); !errors.Is(err, domain.ErrCrypto) {
		t.Fatalf("bad base64: err = %v", err)
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a, b := testKeys(t)
	fa1, err := crypto.Fingerprint(&a.PublicKey)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	fa2, _ := crypto.Fingerprint(&a.PublicKey)
	fb, _ := crypto.Fingerprint(&b.PublicKey)
	if fa1 != fa2 || len(fa1) != 20 {
		t.Fatalf("unstable or wrong length: %q %q", fa1, fa2)
	}
	if fa1 == fb {
		t.Fatal("distinct keys share a fingerprint")
	}
}
