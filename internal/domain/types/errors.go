package types

import "errors"

// Protocol errors. None of them carry key material in their text.
var (
	// ErrInvalidSignedPreKey: the bundle's signed pre-key signature does not
	// verify, or the signed pre-key named by a handshake is unknown.
	ErrInvalidSignedPreKey = errors.New("portseal: invalid signed pre-key")
	// ErrPreKeyExhausted: no one-time pre-key is available, or the one named by
	// a handshake has already been consumed.
	ErrPreKeyExhausted = errors.New("portseal: one-time pre-key exhausted")
	// ErrMalformedBundle: a pre-key bundle is missing required fields.
	ErrMalformedBundle = errors.New("portseal: malformed pre-key bundle")
	// ErrAuthenticationFailed: a header or body failed AEAD verification.
	ErrAuthenticationFailed = errors.New("portseal: authentication failed")
	// ErrReplayedOrUnknownMessage: the message number is behind the receive
	// counter and no skipped key exists for it.
	ErrReplayedOrUnknownMessage = errors.New("portseal: replayed or unknown message")
	// ErrSkipWindowExceeded: delivering the message would need more skipped
	// keys than the cache may hold. Fatal to the session.
	ErrSkipWindowExceeded = errors.New("portseal: skip window exceeded")
	// ErrSessionNotEstablished: encrypt or decrypt before the handshake is complete.
	ErrSessionNotEstablished = errors.New("portseal: session not established")
	// ErrSessionTerminated: the session hit a fatal error and must be re-keyed.
	ErrSessionTerminated = errors.New("portseal: session terminated")
	// ErrUnsupportedVersion: the peer used an unknown protocol version.
	ErrUnsupportedVersion = errors.New("portseal: unsupported protocol version")
	// ErrPrincipalNotFound: the registry has no bundle for the principal.
	ErrPrincipalNotFound = errors.New("portseal: principal not found")
)
