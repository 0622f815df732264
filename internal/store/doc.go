// Package store provides file-based persistence for portseal's local keyring.
//
// A passphrase unlocks keystore.json, which seals a random master key with
// scrypt (default) or argon2id. Every other file is JSON sealed with
// ChaCha20-Poly1305 under that master key, bound to its file name. Writes go
// through a temp file and rename. All methods are concurrency-safe via
// internal locking.
//
// The package includes stores for:
//   - Identity keys (IdentityFileStore)
//   - Signed and one-time pre-keys (PrekeyFileStore)
//   - Sessions and their ratchet state (SessionFileStore)
package store
