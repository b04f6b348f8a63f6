package interfaces

import domaintypes "parley/internal/domain/types"

// AccountStore persists the local login for each server.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile(serverURL string) (domaintypes.AccountProfile, bool, error)
	DeleteAccountProfile(serverURL string) error
}

// IdentityStore caches the local user's identity encrypted under a passphrase.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string, user domaintypes.UserID) (domaintypes.Identity, bool, error)
	DeleteIdentity(user domaintypes.UserID) error
}
