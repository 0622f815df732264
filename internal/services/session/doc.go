// Package session establishes, persists and looks up sessions.
//
// It claims the peer's bundle from the registry, runs the initiator or
// responder handshake, and stores the resulting record in the sealed session
// store. Every later operation restores the record, runs against the live
// session and saves it back, so the ratchet on disk always matches the last
// message produced or accepted.
package session
