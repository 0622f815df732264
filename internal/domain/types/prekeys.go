package types

import "fmt"

// SignedPreKeyPair is a medium-term pre-key with its identity signature.
type SignedPreKeyPair struct {
	ID         SignedPreKeyID `json:"id"`
	Priv       X25519Private  `json:"priv"`
	Pub        X25519Public   `json:"pub"`
	Signature  []byte         `json:"signature"`
	CreatedUTC int64          `json:"created_utc"`
}

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// Public returns the shareable half.
func (p OneTimePreKeyPair) Public() OneTimePreKeyPublic {
	return OneTimePreKeyPublic{ID: p.ID, Pub: p.Pub}
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PublishedBundle is what a principal uploads to the registry: the current
// signed pre-key and its whole batch of one-time publics.
type PublishedBundle struct {
	Principal             PrincipalID           `json:"principal"`
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}

// Claim builds the bundle a single initiator receives, carrying opk if non-nil.
func (b PublishedBundle) Claim(opk *OneTimePreKeyPublic) PreKeyBundle {
	return PreKeyBundle{
		Principal:             b.Principal,
		IdentityKey:           b.IdentityKey,
		SigningKey:            b.SigningKey,
		SignedPreKeyID:        b.SignedPreKeyID,
		SignedPreKey:          b.SignedPreKey,
		SignedPreKeySignature: append([]byte(nil), b.SignedPreKeySignature...),
		OneTimePreKey:         opk,
	}
}

// Validate reports ErrMalformedBundle when required fields are missing.
func (b PublishedBundle) Validate() error {
	return b.Claim(nil).Validate()
}

// PreKeyBundle is the public material an initiator fetches per handshake.
type PreKeyBundle struct {
	Principal             PrincipalID          `json:"principal"`
	IdentityKey           X25519Public         `json:"identity_key"`
	SigningKey            Ed25519Public        `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID       `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public         `json:"signed_pre_key"`
	SignedPreKeySignature []byte               `json:"signed_pre_key_signature"`
	OneTimePreKey         *OneTimePreKeyPublic `json:"one_time_pre_key,omitempty"`
}

// Validate reports ErrMalformedBundle when required fields are missing.
func (b PreKeyBundle) Validate() error {
	switch {
	case b.IdentityKey.IsZero():
		return fmt.Errorf("%w: identity key", ErrMalformedBundle)
	case b.SigningKey.IsZero():
		return fmt.Errorf("%w: signing key", ErrMalformedBundle)
	case b.SignedPreKeyID == "":
		return fmt.Errorf("%w: signed pre-key id", ErrMalformedBundle)
	case b.SignedPreKey.IsZero():
		return fmt.Errorf("%w: signed pre-key", ErrMalformedBundle)
	case len(b.SignedPreKeySignature) != 64:
		return fmt.Errorf("%w: signed pre-key signature", ErrMalformedBundle)
	case b.OneTimePreKey != nil && (b.OneTimePreKey.ID == "" || b.OneTimePreKey.Pub.IsZero()):
		return fmt.Errorf("%w: one-time pre-key", ErrMalformedBundle)
	}
	return nil
}
