// Package session binds an X3DH handshake to a header-encrypted Double
// Ratchet and exposes the result as a mutex-guarded Session.
//
// Flows:
//   - Initiate: claim a bundle elsewhere, run X3DH as initiator, optionally
//     encrypt a first payload into the initial message.
//   - Accept: resolve the named pre-keys (consuming the one-time key), run
//     X3DH as responder, decrypt the optional payload.
//   - Encrypt/Decrypt: standard messages in both directions.
//
// A Session that hits domain.ErrSkipWindowExceeded is terminated and must be
// replaced by a fresh handshake.
package session
