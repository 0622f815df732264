package secret

import (
	"encoding/json"
	"errors"
	"fmt"

	"portseal/internal/domain"
	"portseal/internal/util/memzero"
)

// FormatVersion is the value of the "portseal_secret" marker.
const FormatVersion = 1

var (
	errEmptySecret  = errors.New("secret: value holds no ciphertext")
	errNotSecret    = errors.New("secret: not an encrypted value")
	errUnknownCodec = errors.New("secret: unknown codec")
)

// Sealer encrypts plaintext into a message; *session.Session satisfies it.
type Sealer interface {
	Encrypt(plaintext []byte) (domain.Message, error)
}

// Opener decrypts a message from the peer; *session.Session satisfies it.
type Opener interface {
	Decrypt(msg domain.Message) ([]byte, error)
}

// SecretValue carries a T only in encrypted form. Its JSON form is a small
// tagged object, so it can sit inside any other JSON document.
type SecretValue[T any] struct {
	msg   domain.Message
	codec string
}

type envelope struct {
	Marker *int   `json:"portseal_secret"`
	Codec  string `json:"codec,omitempty"`
	Data   []byte `json:"data"`
}

// Encrypt seals v with the JSON codec.
func Encrypt[T any](s Sealer, v T) (SecretValue[T], error) {
	return EncryptWith(s, v, JSON)
}

// EncryptWith seals v using c to produce the plaintext.
func EncryptWith[T any](s Sealer, v T, c Codec) (SecretValue[T], error) {
	pt, err := c.Marshal(v)
	if err != nil {
		return SecretValue[T]{}, fmt.Errorf("secret: encode: %w", err)
	}
	defer memzero.Zero(pt)

	msg, err := s.Encrypt(pt)
	if err != nil {
		return SecretValue[T]{}, err
	}
	return SecretValue[T]{msg: msg, codec: c.Name()}, nil
}

// Decrypt opens sv and decodes the plaintext into a T.
func Decrypt[T any](o Opener, sv SecretValue[T]) (T, error) {
	var zero T
	if sv.IsZero() {
		return zero, errEmptySecret
	}
	c, ok := codecByName(sv.codec)
	if !ok {
		return zero, fmt.Errorf("%w: %q", errUnknownCodec, sv.codec)
	}
	pt, err := o.Decrypt(sv.msg)
	if err != nil {
		return zero, err
	}
	defer memzero.Zero(pt)

	var out T
	if err := c.Unmarshal(pt, &out); err != nil {
		return zero, fmt.Errorf("secret: decode: %w", err)
	}
	return out, nil
}

// Message returns the underlying ciphertext message.
func (sv SecretValue[T]) Message() domain.Message { return sv.msg }

// IsZero reports whether sv holds no ciphertext.
func (sv SecretValue[T]) IsZero() bool { return sv.msg.Standard == nil && sv.msg.Initial == nil }

// MarshalJSON implements json.Marshaler.
func (sv SecretValue[T]) MarshalJSON() ([]byte, error) {
	if sv.IsZero() {
		return nil, errEmptySecret
	}
	data, err := sv.msg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v := FormatVersion
	env := envelope{Marker: &v, Data: data}
	if sv.codec != JSON.Name() {
		env.Codec = sv.codec
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler.
func (sv *SecretValue[T]) UnmarshalJSON(b []byte) error {
	env, ok := parse(b)
	if !ok {
		return errNotSecret
	}
	if _, ok := codecByName(env.Codec); !ok {
		return fmt.Errorf("%w: %q", errUnknownCodec, env.Codec)
	}
	var msg domain.Message
	if err := msg.UnmarshalBinary(env.Data); err != nil {
		return fmt.Errorf("secret: %w", err)
	}
	sv.msg = msg
	sv.codec = env.Codec
	if sv.codec == "" {
		sv.codec = JSON.Name()
	}
	return nil
}

// IsSecret reports whether raw is the JSON form of a SecretValue.
func IsSecret(raw json.RawMessage) bool {
	_, ok := parse(raw)
	return ok
}

func parse(b []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, false
	}
	if env.Marker == nil || *env.Marker != FormatVersion || len(env.Data) == 0 {
		return envelope{}, false
	}
	return env, true
}
