// Package crypto exposes the minimal primitives used by portseal.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman with low-order point
//     rejection (GenerateX25519, PublicX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - HKDF-SHA256 and HMAC-SHA256 (HKDF, HMAC)
//   - ChaCha20-Poly1305 with random nonces (Seal, Open)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain. Callers
// should treat returned secrets as sensitive and wipe them with
// internal/util/memzero once used.
package crypto
