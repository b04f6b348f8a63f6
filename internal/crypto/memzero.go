package crypto

import (
	"parley/internal/domain"
	"parley/internal/util/memzero"
)

// Wipe zeroes the provided buffer. Best-effort only.
func Wipe(b []byte) { memzero.Zero(b) }

// WipeKey zeroes a session key in place.
func WipeKey(k *domain.SymmetricKey) {
	if k != nil {
		memzero.Zero(k[:])
	}
}
