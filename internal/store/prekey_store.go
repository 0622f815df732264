package store

import (
	"sort"
	"sync"

	"portseal/internal/domain"
)

const (
	spkPairsFile   = "spk_pairs.json.enc"
	opkPairsFile   = "opk_pairs.json.enc"
	prekeyMetaFile = "prekey_meta.json.enc"
)

// PrekeyFileStore persists Signed Pre-Key and One-Time Pre-Key state to disk.
type PrekeyFileStore struct {
	ks *Keystore
	mu sync.Mutex
}

// NewPrekeyFileStore returns a PrekeyFileStore sealed by ks.
func NewPrekeyFileStore(ks *Keystore) *PrekeyFileStore {
	return &PrekeyFileStore{ks: ks}
}

type prekeyMeta struct {
	CurrentSignedPreKeyID domain.SignedPreKeyID `json:"current_signed_pre_key_id"`
}

// SaveSignedPreKey stores a signed pre-key by id.
func (s *PrekeyFileStore) SaveSignedPreKey(pair domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readSealed(s.ks, spkPairsFile, &m); err != nil {
		return err
	}
	m[pair.ID] = pair
	return writeSealed(s.ks, spkPairsFile, m)
}

// LoadSignedPreKey retrieves a signed pre-key by id.
func (s *PrekeyFileStore) LoadSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readSealed(s.ks, spkPairsFile, &m); err != nil {
		return domain.SignedPreKeyPair{}, false, err
	}
	p, ok := m[id]
	return p, ok, nil
}

// DeleteSignedPreKey removes a retired signed pre-key.
func (s *PrekeyFileStore) DeleteSignedPreKey(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.SignedPreKeyID]domain.SignedPreKeyPair{}
	if err := readSealed(s.ks, spkPairsFile, &m); err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return writeSealed(s.ks, spkPairsFile, m)
}

// SaveOneTimePreKeys merges the provided one-time pre-key pairs into the store.
func (s *PrekeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readSealed(s.ks, opkPairsFile, &m); err != nil {
		return err
	}
	for _, p := range pairs {
		m[p.ID] = p
	}
	return writeSealed(s.ks, opkPairsFile, m)
}

// ConsumeOneTimePreKey removes and returns a single one-time pre-key by id.
func (s *PrekeyFileStore) ConsumeOneTimePreKey(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readSealed(s.ks, opkPairsFile, &m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	p, ok := m[id]
	if !ok {
		return domain.OneTimePreKeyPair{}, false, nil
	}
	delete(m, id)
	if err := writeSealed(s.ks, opkPairsFile, m); err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	return p, true, nil
}

// ListOneTimePreKeyPublics exposes only the public halves for bundling,
// ordered by id.
func (s *PrekeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair{}
	if err := readSealed(s.ks, opkPairsFile, &m); err != nil {
		return nil, err
	}

	out := make([]domain.OneTimePreKeyPublic, 0, len(m))
	for _, p := range m {
		out = append(out, p.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetCurrentSignedPreKeyID records which signed pre-key id is current.
func (s *PrekeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSealed(s.ks, prekeyMetaFile, prekeyMeta{CurrentSignedPreKeyID: id})
}

// CurrentSignedPreKeyID returns the recorded current signed pre-key id.
func (s *PrekeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta prekeyMeta
	if err := readSealed(s.ks, prekeyMetaFile, &meta); err != nil {
		return "", false, err
	}
	if meta.CurrentSignedPreKeyID == "" {
		return "", false, nil
	}
	return meta.CurrentSignedPreKeyID, true, nil
}

// Compile-time assertion that PrekeyFileStore implements domain.PreKeyStore.
var _ domain.PreKeyStore = (*PrekeyFileStore)(nil)
