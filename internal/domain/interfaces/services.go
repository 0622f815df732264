package interfaces

import (
	"context"
	"encoding/json"

	domaintypes "portseal/internal/domain/types"
)

// IdentityStore owns the identity key pair and the locally generated
// pre-keys, produces the public bundle and resolves private halves for
// handshakes.
type IdentityStore interface {
	GenerateIdentity() (domaintypes.Identity, domaintypes.Fingerprint, error)
	LoadIdentity() (domaintypes.Identity, error)
	FingerprintIdentity() (domaintypes.Fingerprint, error)
	GeneratePreKeys(count int) (domaintypes.SignedPreKeyPair, []domaintypes.OneTimePreKeyPair, error)
	PublicBundle(principal domaintypes.PrincipalID) (domaintypes.PublishedBundle, error)
	SignedPreKeyPrivate(id domaintypes.SignedPreKeyID) (domaintypes.X25519Private, bool, error)
	TakeOneTimePrivate(id domaintypes.OneTimePreKeyID) (domaintypes.X25519Private, bool, error)
}

// SessionService establishes, persists and looks up sessions.
type SessionService interface {
	InitiateSession(
		ctx context.Context,
		peer domaintypes.PrincipalID,
		payload []byte,
	) (domaintypes.SessionRecord, domaintypes.Message, error)
	AcceptSession(
		ctx context.Context,
		msg domaintypes.Message,
	) (domaintypes.SessionRecord, []byte, error)
	GetSession(id domaintypes.SessionID) (domaintypes.SessionRecord, bool, error)
	ListSessions() ([]domaintypes.SessionRecord, error)
}

// PayloadService encrypts and decrypts values of a workflow input document
// with a stored session.
type PayloadService interface {
	EncryptPorts(
		ctx context.Context,
		id domaintypes.SessionID,
		doc json.RawMessage,
		handles []string,
	) (json.RawMessage, error)
	DecryptPorts(
		ctx context.Context,
		id domaintypes.SessionID,
		doc json.RawMessage,
		handles []string,
	) (json.RawMessage, error)
}
