package types

import (
	"encoding/base64"
	"errors"
)

var errKeyLength = errors.New("key has wrong length")

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

func (p X25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

func (p *X25519Public) UnmarshalText(b []byte) error { return unmarshalKey(p[:], b) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Wipe zeroes the key in place.
func (k *X25519Private) Wipe() { *k = X25519Private{} }

func (k X25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

func (k *X25519Private) UnmarshalText(b []byte) error { return unmarshalKey(k[:], b) }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zeros.
func (p Ed25519Public) IsZero() bool { return p == Ed25519Public{} }

func (p Ed25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

func (p *Ed25519Public) UnmarshalText(b []byte) error { return unmarshalKey(p[:], b) }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

func (k Ed25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

func (k *Ed25519Private) UnmarshalText(b []byte) error { return unmarshalKey(k[:], b) }

// Keys travel as standard base64 in JSON.
func marshalKey(k []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(out, k)
	return out, nil
}

func unmarshalKey(dst, text []byte) error {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(buf, text)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return errKeyLength
	}
	copy(dst, buf[:n])
	for i := range buf {
		buf[i] = 0
	}
	return nil
}
