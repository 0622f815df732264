package domain

import (
	interfaces "portseal/internal/domain/interfaces"
	types "portseal/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	PrincipalID         = types.PrincipalID
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	SessionID           = types.SessionID
	Identity            = types.Identity
	SignedPreKeyPair    = types.SignedPreKeyPair
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PublishedBundle     = types.PublishedBundle
	PreKeyBundle        = types.PreKeyBundle
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	SkippedKey          = types.SkippedKey
	EncryptedMessage    = types.EncryptedMessage
	InitialMessage      = types.InitialMessage
	Message             = types.Message
	OutgoingKey         = types.OutgoingKey
	SessionRecord       = types.SessionRecord
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore    = interfaces.IdentityStore
	SessionService   = interfaces.SessionService
	PayloadService   = interfaces.PayloadService
	PreKeyRegistry   = interfaces.PreKeyRegistry
	IdentityKeyStore = interfaces.IdentityKeyStore
	PreKeyStore      = interfaces.PreKeyStore
	SessionStore     = interfaces.SessionStore
)

// Protocol constants.
const (
	ProtocolVersion     = types.ProtocolVersion
	MessageKindInitial  = types.MessageKindInitial
	MessageKindStandard = types.MessageKindStandard
)

// Protocol errors; see types/errors.go.
var (
	ErrInvalidSignedPreKey      = types.ErrInvalidSignedPreKey
	ErrPreKeyExhausted          = types.ErrPreKeyExhausted
	ErrMalformedBundle          = types.ErrMalformedBundle
	ErrAuthenticationFailed     = types.ErrAuthenticationFailed
	ErrReplayedOrUnknownMessage = types.ErrReplayedOrUnknownMessage
	ErrSkipWindowExceeded       = types.ErrSkipWindowExceeded
	ErrSessionNotEstablished    = types.ErrSessionNotEstablished
	ErrSessionTerminated        = types.ErrSessionTerminated
	ErrUnsupportedVersion       = types.ErrUnsupportedVersion
	ErrPrincipalNotFound        = types.ErrPrincipalNotFound
)

// ParseSessionID decodes the hex form printed by SessionID.String.
func ParseSessionID(s string) (SessionID, error) { return types.ParseSessionID(s) }
