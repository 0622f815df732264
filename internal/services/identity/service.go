package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"portseal/internal/crypto"
	"portseal/internal/domain"
)

var (
	// ErrNoIdentity is returned before GenerateIdentity has run.
	ErrNoIdentity = errors.New("no identity (run init first)")
	// ErrNoSignedPreKey is returned by PublicBundle before GeneratePreKeys.
	ErrNoSignedPreKey = errors.New("no signed pre-key (run publish first)")

	errIdentityExists = errors.New("identity already exists")
	errNegativeCount  = errors.New("pre-key count must not be negative")
)

// Service manages identity and pre-key material.
//
// The identity contains:
//   - X25519 key pair for Diffie-Hellman (X3DH).
//   - Ed25519 key pair for signing signed pre-keys.
type Service struct {
	ids domain.IdentityKeyStore
	ps  domain.PreKeyStore
	now func() time.Time
}

// New returns an identity service backed by the given stores.
func New(ids domain.IdentityKeyStore, ps domain.PreKeyStore) *Service {
	return &Service{ids: ids, ps: ps, now: time.Now}
}

// GenerateIdentity creates and saves a new identity and returns it with the
// fingerprint of its X25519 public key. It never overwrites an existing one.
func (s *Service) GenerateIdentity() (domain.Identity, domain.Fingerprint, error) {
	if _, ok, err := s.ids.LoadIdentity(); err != nil {
		return domain.Identity{}, "", err
	} else if ok {
		return domain.Identity{}, "", errIdentityExists
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.Identity{}, "", err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.Identity{}, "", err
	}

	id := domain.Identity{
		XPub:   xPub,
		XPriv:  xPriv,
		EdPub:  edPub,
		EdPriv: edPriv,
	}
	if err := s.ids.SaveIdentity(id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, crypto.Fingerprint(id.XPub.Slice()), nil
}

func (s *Service) LoadIdentity() (domain.Identity, error) {
	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.Identity{}, err
	}
	if !ok {
		return domain.Identity{}, ErrNoIdentity
	}
	return id, nil
}

// FingerprintIdentity returns a short fingerprint of the local X25519 public key.
func (s *Service) FingerprintIdentity() (domain.Fingerprint, error) {
	id, err := s.LoadIdentity()
	if err != nil {
		return "", err
	}
	defer id.Wipe()
	return crypto.Fingerprint(id.XPub.Slice()), nil
}

// GeneratePreKeys creates a signed pre-key, makes it current, and mints count
// one-time pre-keys. Older signed pre-keys stay resolvable so handshakes
// already in flight still complete.
func (s *Service) GeneratePreKeys(count int) (domain.SignedPreKeyPair, []domain.OneTimePreKeyPair, error) {
	if count < 0 {
		return domain.SignedPreKeyPair{}, nil, errNegativeCount
	}
	id, err := s.LoadIdentity()
	if err != nil {
		return domain.SignedPreKeyPair{}, nil, err
	}
	defer id.Wipe()

	now := s.now().UTC()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.SignedPreKeyPair{}, nil, err
	}
	spk := domain.SignedPreKeyPair{
		ID:         domain.SignedPreKeyID(fmt.Sprintf("spk-%d-%s", now.Unix(), shortID())),
		Priv:       spkPriv,
		Pub:        spkPub,
		Signature:  crypto.SignEd25519(id.EdPriv, spkPub[:]),
		CreatedUTC: now.Unix(),
	}
	if err := s.ps.SaveSignedPreKey(spk); err != nil {
		return domain.SignedPreKeyPair{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spk.ID); err != nil {
		return domain.SignedPreKeyPair{}, nil, err
	}

	batch := shortID()
	pairs := make([]domain.OneTimePreKeyPair, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.SignedPreKeyPair{}, nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID(fmt.Sprintf("opk-%d-%s-%d", now.Unix(), batch, i)),
			Priv: priv,
			Pub:  pub,
		})
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return domain.SignedPreKeyPair{}, nil, err
	}
	return spk, pairs, nil
}

// PublicBundle builds the registry form of our bundle from the current signed
// pre-key and every remaining one-time public. With no one-time keys left the
// bundle is still valid; initiators then run X3DH without one.
func (s *Service) PublicBundle(principal domain.PrincipalID) (domain.PublishedBundle, error) {
	id, err := s.LoadIdentity()
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	defer id.Wipe()

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	if !ok {
		return domain.PublishedBundle{}, ErrNoSignedPreKey
	}
	spk, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	if !found {
		return domain.PublishedBundle{}, ErrNoSignedPreKey
	}
	spk.Priv.Wipe()

	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PublishedBundle{}, err
	}

	return domain.PublishedBundle{
		Principal:             principal,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spk.ID,
		SignedPreKey:          spk.Pub,
		SignedPreKeySignature: spk.Signature,
		OneTimePreKeys:        oneTime,
	}, nil
}

func (s *Service) SignedPreKeyPrivate(id domain.SignedPreKeyID) (domain.X25519Private, bool, error) {
	spk, ok, err := s.ps.LoadSignedPreKey(id)
	if err != nil || !ok {
		return domain.X25519Private{}, false, err
	}
	return spk.Priv, true, nil
}

// TakeOneTimePrivate consumes the one-time pre-key. A second call for the
// same id reports ok == false.
func (s *Service) TakeOneTimePrivate(id domain.OneTimePreKeyID) (domain.X25519Private, bool, error) {
	pair, ok, err := s.ps.ConsumeOneTimePreKey(id)
	if err != nil || !ok {
		return domain.X25519Private{}, false, err
	}
	return pair.Priv, true, nil
}

// RetireSignedPreKey forgets a signed pre-key once no handshake can still name
// it. The current one cannot be retired.
func (s *Service) RetireSignedPreKey(id domain.SignedPreKeyID) error {
	cur, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return err
	}
	if ok && cur == id {
		return fmt.Errorf("signed pre-key %s is current", id)
	}
	return s.ps.DeleteSignedPreKey(id)
}

func shortID() string { return uuid.NewString()[:8] }

var _ domain.IdentityStore = (*Service)(nil)
