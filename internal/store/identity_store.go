package store

import (
	"sync"

	"portseal/internal/domain"
)

const idFilename = "identity.json.enc"

// IdentityFileStore persists the local identity to disk, sealed under the keystore.
type IdentityFileStore struct {
	ks *Keystore
	mu sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore sealed by ks.
func NewIdentityFileStore(ks *Keystore) *IdentityFileStore {
	return &IdentityFileStore{ks: ks}
}

// SaveIdentity writes the encrypted identity to disk.
func (s *IdentityFileStore) SaveIdentity(id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSealed(s.ks, idFilename, id)
}

// LoadIdentity reads and decrypts the identity. ok is false before one has been saved.
func (s *IdentityFileStore) LoadIdentity() (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id domain.Identity
	if err := readSealed(s.ks, idFilename, &id); err != nil {
		return domain.Identity{}, false, err
	}
	if id.XPub.IsZero() {
		return domain.Identity{}, false, nil
	}
	return id, true, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityKeyStore.
var _ domain.IdentityKeyStore = (*IdentityFileStore)(nil)
