// Package x3dh implements the X3DH key agreement used to bootstrap a Double
// Ratchet session between two parties.
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte secret SK with a responder who
// has published a pre-key bundle. A claimed bundle contains:
//   - Identity key (X25519) and signing key (Ed25519)
//   - Signed pre-key (X25519) and its Ed25519 signature
//   - At most one one-time pre-key (X25519)
//
// # Flows
//
// Initiator:
//  1. Validate the bundle and verify the signed pre-key signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  4. HKDF over 0xFF×32 followed by the DH transcript, zero salt.
//  5. Return SK, AD = IKa ‖ IKb, the SPK/OPK identifiers used and the
//     ephemeral public.
//
// Responder:
//  1. Receive the InitialMessage (initiator IK, ephemeral EK, SPK id[, OPK id]).
//  2. Resolve the SPK private half and consume the OPK.
//  3. Compute the mirrored DH set (SPKb·IKa, IKb·EKa, SPKb·EKa[, OPKb·EKa]).
//  4. HKDF the same transcript to the identical SK and AD.
//
// # Errors
//
// ErrInvalidSignedPreKey is returned when the SPK signature fails verification,
// ErrMalformedBundle when required fields are missing, and ErrPreKeyExhausted
// when the message names a one-time pre-key the responder no longer holds.
// Small-order public keys surface as crypto.ErrLowOrderPoint.
//
// # Security notes
//
// Only public material is sent over the wire. One-time pre-keys, when present,
// improve forward secrecy by mixing in a value that is deleted after first use.
package x3dh
