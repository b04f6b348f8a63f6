package store

import (
	"path/filepath"
	"sync"

	"parley/internal/domain"
)

const accountsFile = "accounts.json"

// AccountFileStore persists per-server login profiles to disk.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

// SaveAccountProfile stores or replaces the profile for profile.ServerURL.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}
	profiles[profile.ServerURL] = profile
	return writeJSON(s.path(), profiles, 0o600)
}

// LoadAccountProfile retrieves the profile for serverURL.
func (s *AccountFileStore) LoadAccountProfile(serverURL string) (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return domain.AccountProfile{}, false, err
	}
	profile, ok := profiles[serverURL]
	return profile, ok, nil
}

// DeleteAccountProfile forgets the login for serverURL.
func (s *AccountFileStore) DeleteAccountProfile(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := profiles[serverURL]; !ok {
		return nil
	}
	delete(profiles, serverURL)
	return writeJSON(s.path(), profiles, 0o600)
}

func (s *AccountFileStore) load() (map[string]domain.AccountProfile, error) {
	profiles := make(map[string]domain.AccountProfile)
	if err := readJSON(s.path(), &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *AccountFileStore) path() string { return filepath.Join(s.dir, accountsFile) }

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
