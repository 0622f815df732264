package types

// Identity holds a principal's long-term X25519 and Ed25519 keys.
//
// The X25519 pair takes part in X3DH; the Ed25519 pair signs pre-keys.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// Wipe zeroes the private halves.
func (id *Identity) Wipe() {
	id.XPriv.Wipe()
	id.EdPriv = Ed25519Private{}
}
