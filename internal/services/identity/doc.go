// Package identity owns the local identity and pre-keys.
//
// It generates X25519 and Ed25519 key pairs, signs and rotates signed
// pre-keys, mints one-time pre-keys, builds the bundle published to the
// registry and resolves private halves when a handshake names them. Keys are
// persisted through domain.IdentityKeyStore and domain.PreKeyStore.
package identity
