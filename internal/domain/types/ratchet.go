package types

// RatchetHeader is the plaintext header carried, encrypted, by every message.
type RatchetHeader struct {
	DH X25519Public `json:"dh_pub"`
	PN uint32       `json:"pn"`
	N  uint32       `json:"n"`
}

// SkippedKey is a cached message key for a message that arrived out of order,
// kept with the header key that protects that message's header.
type SkippedKey struct {
	HeaderKey  []byte       `json:"hk"`
	PeerDH     X25519Public `json:"peer_dh"`
	N          uint32       `json:"n"`
	MessageKey []byte       `json:"mk"`
}

// RatchetState contains all fields the header-encrypted Double Ratchet tracks.
// Nil chain or header keys mean "not derived yet".
type RatchetState struct {
	RootKey                 []byte                `json:"root_key"`
	DiffieHellmanPrivate    X25519Private         `json:"dh_priv"`
	DiffieHellmanPublic     X25519Public          `json:"dh_pub"`
	PeerDiffieHellmanPublic X25519Public          `json:"peer_dh_pub"`
	SendChainKey            []byte                `json:"send_ck,omitempty"`
	ReceiveChainKey         []byte                `json:"recv_ck,omitempty"`
	SendHeaderKey           []byte                `json:"hks,omitempty"`
	ReceiveHeaderKey        []byte                `json:"hkr,omitempty"`
	NextSendHeaderKey       []byte                `json:"nhks,omitempty"`
	NextReceiveHeaderKey    []byte                `json:"nhkr,omitempty"`
	PreviousReceiveHeader   []byte                `json:"prev_hkr,omitempty"`
	SendMessageIndex        uint32                `json:"ns"`
	ReceiveMessageIndex     uint32                `json:"nr"`
	PreviousChainLength     uint32                `json:"pn"`
	SkippedKeys             map[string]SkippedKey `json:"skipped_keys,omitempty"`
}
