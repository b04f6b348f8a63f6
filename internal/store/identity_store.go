package store

import (
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sync"

	"parley/internal/domain"
)

// IdentityFileStore keeps one encrypted identity file per user under dir.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir}
}

// SaveIdentity seals id under passphrase and writes it to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	ct, err := seal(passphrase, raw, []byte(id.ID))
	if err != nil {
		return err
	}
	return writeFile(s.path(id.ID), ct, 0o600)
}

// LoadIdentity reads and decrypts the identity of user. ok is false when no
// file exists.
func (s *IdentityFileStore) LoadIdentity(passphrase string, user domain.UserID) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path(user))
	if err != nil || b == nil {
		return domain.Identity{}, false, err
	}
	pt, err := open(passphrase, b, []byte(user))
	if err != nil {
		return domain.Identity{}, false, err
	}
	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// DeleteIdentity removes the cached identity of user.
func (s *IdentityFileStore) DeleteIdentity(user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.path(user))
}

func (s *IdentityFileStore) path(user domain.UserID) string {
	return filepath.Join(s.dir, "identity-"+hex.EncodeToString([]byte(user))+".json.enc")
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
