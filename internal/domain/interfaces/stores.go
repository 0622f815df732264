package interfaces

import domaintypes "portseal/internal/domain/types"

// IdentityKeyStore persists the long-term identity keys.
type IdentityKeyStore interface {
	SaveIdentity(id domaintypes.Identity) error
	LoadIdentity() (domaintypes.Identity, bool, error)
}

// PreKeyStore persists signed and one-time pre-key pairs.
type PreKeyStore interface {
	// Signed pre-keys
	SaveSignedPreKey(pair domaintypes.SignedPreKeyPair) error
	LoadSignedPreKey(id domaintypes.SignedPreKeyID) (domaintypes.SignedPreKeyPair, bool, error)
	DeleteSignedPreKey(id domaintypes.SignedPreKeyID) error
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	// ConsumeOneTimePreKey removes the pair; a second call for the same id
	// reports ok == false.
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (domaintypes.OneTimePreKeyPair, bool, error)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)
}

// SessionStore persists session records keyed by session id.
type SessionStore interface {
	SaveSession(rec domaintypes.SessionRecord) error
	LoadSession(id domaintypes.SessionID) (domaintypes.SessionRecord, bool, error)
	ListSessions() ([]domaintypes.SessionRecord, error)
	DeleteSession(id domaintypes.SessionID) error
}
