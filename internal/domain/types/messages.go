package types

import "github.com/fxamacker/cbor/v2"

// ProtocolVersion tags every Message produced by this implementation.
const ProtocolVersion uint8 = 1

// Message kinds.
const (
	MessageKindInitial  = "initial"
	MessageKindStandard = "standard"
)

// EncryptedMessage is the wire form of one ratchet message. The header
// ciphertext includes its own Poly1305 tag; the body tag travels in AuthTag.
type EncryptedMessage struct {
	HeaderCiphertext []byte `json:"header_ciphertext" cbor:"1,keyasint"`
	HeaderNonce      []byte `json:"header_nonce" cbor:"2,keyasint"`
	BodyCiphertext   []byte `json:"body_ciphertext" cbor:"3,keyasint"`
	BodyNonce        []byte `json:"body_nonce" cbor:"4,keyasint"`
	AuthTag          []byte `json:"auth_tag" cbor:"5,keyasint"`
}

// InitialMessage is the first packet of a handshake, sent by the initiator.
type InitialMessage struct {
	InitiatorIdentityKey X25519Public      `json:"initiator_identity_key" cbor:"1,keyasint"`
	EphemeralKey         X25519Public      `json:"ephemeral_key" cbor:"2,keyasint"`
	SignedPreKeyID       SignedPreKeyID    `json:"signed_pre_key_id" cbor:"3,keyasint"`
	OneTimePreKeyID      OneTimePreKeyID   `json:"one_time_pre_key_id,omitempty" cbor:"4,keyasint,omitempty"`
	Payload              *EncryptedMessage `json:"payload,omitempty" cbor:"5,keyasint,omitempty"`
}

// Message is the tagged union carried by the transport.
type Message struct {
	Kind     string            `json:"kind" cbor:"1,keyasint"`
	Version  uint8             `json:"version" cbor:"2,keyasint"`
	Initial  *InitialMessage   `json:"initial,omitempty" cbor:"3,keyasint,omitempty"`
	Standard *EncryptedMessage `json:"standard,omitempty" cbor:"4,keyasint,omitempty"`
}

// wireMessage has Message's layout without its methods, so the CBOR encoder
// does not call back into MarshalBinary.
type wireMessage Message

// MarshalBinary encodes m as CBOR.
func (m Message) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(wireMessage(m))
}

// UnmarshalBinary decodes a CBOR message produced by MarshalBinary.
func (m *Message) UnmarshalBinary(b []byte) error {
	var w wireMessage
	if err := cbor.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message(w)
	return nil
}
