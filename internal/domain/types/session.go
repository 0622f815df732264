package types

// OutgoingKey lets a sender read back a message it produced.
type OutgoingKey struct {
	Digest     string `json:"digest"`
	N          uint32 `json:"n"`
	MessageKey []byte `json:"mk"`
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	ID             SessionID     `json:"id"`
	Peer           PrincipalID   `json:"peer,omitempty"`
	Initiator      bool          `json:"initiator"`
	LocalIdentity  X25519Public  `json:"local_identity"`
	PeerIdentity   X25519Public  `json:"peer_identity"`
	AssociatedData []byte        `json:"ad"`
	Ratchet        RatchetState  `json:"ratchet"`
	Outgoing       []OutgoingKey `json:"outgoing,omitempty"`
	CreatedUTC     int64         `json:"created_utc"`
	Terminated     bool          `json:"terminated,omitempty"`
}
