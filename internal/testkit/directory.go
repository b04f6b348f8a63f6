package testkit

import (
	"context"
	"sync"
	"testing"

	"parley/internal/crypto"
	"parley/internal/domain"
)

var (
	idMu       sync.Mutex
	identities = map[domain.UserID]domain.Identity{}
)

// Identity returns a PEM identity for id, generating it on first use.
func Identity(t testing.TB, id domain.UserID) domain.Identity {
	t.Helper()
	idMu.Lock()
	defer idMu.Unlock()
	if ident, ok := identities[id]; ok {
		return ident
	}
	ident, err := crypto.NewIdentity(id, crypto.DefaultRSABits)
	if err != nil {
		t.Fatalf("NewIdentity(%s): %v", id, err)
	}
	identities[id] = ident
	return ident
}

// Directory is an in-memory key directory shared by several users.
type Directory struct {
	mu        sync.Mutex
	ids       map[domain.UserID]domain.Identity
	pubCalls  map[domain.UserID]int
	privCalls int
	fail      error
}

// NewDirectory registers an identity for each user.
func NewDirectory(t testing.TB, users ...domain.UserID) *Directory {
	t.Helper()
	d := &Directory{
		ids:      make(map[domain.UserID]domain.Identity),
		pubCalls: make(map[domain.UserID]int),
	}
	for _, u := range users {
		d.ids[u] = Identity(t, u)
	}
	return d
}

// As returns the directory as seen by the authenticated user self.
func (d *Directory) As(self domain.UserID) domain.KeyDirectory {
	return &view{d: d, self: self}
}

// SetFailure makes every lookup fail with err until cleared with nil.
func (d *Directory) SetFailure(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// PublicKeyCalls reports how many times id's public key was fetched.
func (d *Directory) PublicKeyCalls(id domain.UserID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pubCalls[id]
}

// PrivateKeyCalls reports how many private key fetches were served.
func (d *Directory) PrivateKeyCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.privCalls
}

type view struct {
	d    *Directory
	self domain.UserID
}

func (v *view) PublicKey(ctx context.Context, id domain.UserID) (string, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	v.d.pubCalls[id]++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v.d.fail != nil {
		return "", v.d.fail
	}
	ident, ok := v.d.ids[id]
	if !ok {
		return "", domain.NotFound("user not found")
	}
	return ident.PublicKeyPEM, nil
}

func (v *view) PrivateKey(ctx context.Context) (string, error) {
	v.d.mu.Lock()
	defer v.d.mu.Unlock()
	v.d.privCalls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v.d.fail != nil {
		return "", v.d.fail
	}
	ident, ok := v.d.ids[v.self]
	if !ok {
		return "", domain.NotFound("user not found")
	}
	return ident.PrivateKeyPEM, nil
}
