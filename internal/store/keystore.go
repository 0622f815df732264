package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"portseal/internal/crypto"
	"portseal/internal/util/memzero"
)

const (
	// The current supported version of the encrypted blob format stored on disk.
	keystoreFormatVersion = 1

	keystoreFile = "keystore.json"

	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

// KDF names the passphrase key-derivation function sealing the master key.
type KDF string

const (
	KDFScrypt   KDF = "scrypt"
	KDFArgon2id KDF = "argon2id"
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// keystore has been modified / corrupted.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	// ErrNoKeystore is returned by OpenKeystore before init has run.
	ErrNoKeystore = errors.New("no keystore found (run init first)")

	errKeystoreExists = errors.New("keystore already exists")
	errUnknownKDF     = errors.New("unknown key derivation function")
	errSealedVersion  = errors.New("unsupported sealed file version")
)

// blob is the on‑disk JSON structure holding the sealed master key and KDF parameters.
type blob struct {
	V       int    `json:"v"`
	KDF     KDF    `json:"kdf"`
	Salt    []byte `json:"salt"`
	N       int    `json:"scrypt_N,omitempty"`
	R       int    `json:"scrypt_r,omitempty"`
	P       int    `json:"scrypt_p,omitempty"`
	Time    uint32 `json:"argon2_t,omitempty"`
	Memory  uint32 `json:"argon2_m,omitempty"`
	Threads uint8  `json:"argon2_p,omitempty"`
	Cipher  []byte `json:"cipher"`
}

// Keystore holds the master key that seals every other file under dir.
type Keystore struct {
	dir string
	mu  sync.Mutex
	key []byte
}

// KeystoreExists reports whether dir already holds a keystore.
func KeystoreExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, keystoreFile))
	return err == nil
}

// CreateKeystore generates a master key, seals it under passphrase and writes
// it to dir. It refuses to overwrite an existing keystore.
func CreateKeystore(dir, passphrase string, kdf KDF) (*Keystore, error) {
	if !isSecurePassphrase(passphrase) {
		return nil, ErrWeakPassphrase
	}
	if KeystoreExists(dir) {
		return nil, errKeystoreExists
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	b, err := encrypt(passphrase, key, kdf)
	if err != nil {
		memzero.Zero(key)
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, keystoreFile), b, 0o600); err != nil {
		memzero.Zero(key)
		return nil, err
	}
	return &Keystore{dir: dir, key: key}, nil
}

// OpenKeystore unseals the master key in dir.
func OpenKeystore(dir, passphrase string) (*Keystore, error) {
	b, err := readFile(filepath.Join(dir, keystoreFile))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNoKeystore
	}
	key, err := decrypt(passphrase, b)
	if err != nil {
		return nil, err
	}
	return &Keystore{dir: dir, key: key}, nil
}

// Dir returns the directory the keystore lives in.
func (k *Keystore) Dir() string { return k.dir }

// Close wipes the master key.
func (k *Keystore) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	memzero.Zero(k.key)
	k.key = nil
}

// sealedFile is the on-disk form of a file sealed under the master key.
type sealedFile struct {
	V      int    `json:"v"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// seal encrypts raw; name is bound as associated data so files can't be swapped.
func (k *Keystore) seal(name string, raw []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key == nil {
		return nil, ErrNoKeystore
	}
	nonce, ct, err := crypto.Seal(k.key, raw, []byte(name))
	if err != nil {
		return nil, err
	}
	return json.Marshal(sealedFile{V: keystoreFormatVersion, Nonce: nonce, Cipher: ct})
}

func (k *Keystore) open(name string, b []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key == nil {
		return nil, ErrNoKeystore
	}
	var f sealedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.V > keystoreFormatVersion {
		return nil, fmt.Errorf("%w %d", errSealedVersion, f.V)
	}
	pt, err := crypto.Open(k.key, f.Nonce, f.Cipher, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrWrongPassphrase)
	}
	return pt, nil
}

// encrypt derives a key from passphrase and seals raw into a JSON blob.
func encrypt(passphrase string, raw []byte, kdf KDF) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:] /* #nosec G404 */); err != nil {
		return nil, err
	}
	bl := blob{V: keystoreFormatVersion, KDF: kdf, Salt: salt[:]}
	switch kdf {
	case KDFScrypt, "":
		bl.KDF = KDFScrypt
		bl.N, bl.R, bl.P = scryptParamsDefault()
	case KDFArgon2id:
		bl.Time, bl.Memory, bl.Threads = argon2ParamsDefault()
	default:
		return nil, fmt.Errorf("%w %q", errUnknownKDF, kdf)
	}

	key, err := deriveKey(passphrase, bl)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte // zero nonce; salt‑bound key guarantees uniqueness
	bl.Cipher = aead.Seal(nil, nonce[:], raw, salt[:])
	return json.Marshal(bl)
}

// decrypt opens the JSON blob using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}

	key, err := deriveKey(passphrase, bl)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func deriveKey(passphrase string, bl blob) ([]byte, error) {
	switch bl.KDF {
	case KDFScrypt, "":
		return scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	case KDFArgon2id:
		return argon2.IDKey([]byte(passphrase), bl.Salt, bl.Time, bl.Memory, bl.Threads, chacha20poly1305.KeySize), nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownKDF, bl.KDF)
	}
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// Tunables for argon2id key derivation (time, KiB of memory, threads).
func argon2ParamsDefault() (t, m uint32, p uint8) { return 3, 64 * 1024, 4 }

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
