package types

import (
	"encoding/hex"
	"errors"
)

var errSessionIDLength = errors.New("session id must be 32 bytes")

// PrincipalID names a party (client or leader) in the pre-key registry.
type PrincipalID string

// String returns the string form of the principal.
func (p PrincipalID) String() string { return string(p) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }

// SessionID is SHA-256("session-id" || SK); both parties derive the same value.
type SessionID [32]byte

// String returns the lowercase hex form of the id.
func (id SessionID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the id is unset.
func (id SessionID) IsZero() bool { return id == SessionID{} }

// ParseSessionID decodes the hex form produced by String.
func ParseSessionID(s string) (SessionID, error) {
	var id SessionID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, errSessionIDLength
	}
	copy(id[:], b)
	return id, nil
}

// MarshalText encodes the id as hex so it can key JSON maps.
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a hex id.
func (id *SessionID) UnmarshalText(b []byte) error {
	v, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
