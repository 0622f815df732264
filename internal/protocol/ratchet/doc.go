// Package ratchet implements the Double Ratchet with header encryption.
//
// Each party keeps a root key, a sending and a receiving chain, and a DH
// ratchet key pair. Every message advances a symmetric KDF chain, and every
// change of speaker turns the DH ratchet, deriving fresh chain keys from the
// root. Headers (ratchet public key, previous chain length, message number) are
// sealed under header keys that rotate with the DH ratchet, so an observer
// cannot link messages to ratchet keys.
//
// Key schedule:
//
//	KDF_RK(rk, dh) = HKDF-SHA256(salt=rk, ikm=dh, info="portseal-ratchet-root")
//	                 -> rk' || ck || next header key   (96 bytes)
//	KDF_CK(ck)     = HMAC-SHA256(ck, 0x01) -> ck', HMAC-SHA256(ck, 0x02) -> mk
//
// Header and body are sealed with ChaCha20-Poly1305 under random nonces. The
// body's associated data is the session AD followed by the header nonce and
// header ciphertext.
//
// Out-of-order messages are handled by caching skipped message keys, at most
// MaxSkip of them. A message that would need more is rejected with
// domain.ErrSkipWindowExceeded; nothing is evicted.
//
// Decrypt is all-or-nothing: it works on a Clone of the state and commits only
// after the body authenticates.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per session.
package ratchet
