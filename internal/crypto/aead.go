package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagSize is the Poly1305 tag length appended by Seal.
const TagSize = chacha20poly1305.Overhead

var errShortCiphertext = errors.New("aead: ciphertext shorter than tag")

// Seal encrypts plaintext under key with a fresh random 96-bit nonce.
// The returned ciphertext includes the tag.
func Seal(key, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open reverses Seal.
func Open(key, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < TagSize {
		return nil, errShortCiphertext
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("aead: bad nonce length")
	}
	return aead.Open(nil, nonce, ciphertext, ad)
}
