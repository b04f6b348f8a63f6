// Package memzero clears secrets from memory.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros. The copy goes through crypto/subtle and b is
// kept live afterwards so the write is not elided.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// ZeroAll zeroes every buffer in bs.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
