package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"portseal/internal/crypto"
	"portseal/internal/domain"
	"portseal/internal/protocol/ratchet"
	"portseal/internal/protocol/x3dh"
	"portseal/internal/util/memzero"
)

// OutgoingCacheSize bounds the message keys kept for ReadOwn.
const OutgoingCacheSize = 1024

const sessionIDLabel = "session-id"

var (
	errUnexpectedKind = errors.New("session: unexpected message kind")
	errEmptyMessage   = errors.New("session: message has no content")

	errTerminated = fmt.Errorf("%w: %w", domain.ErrSessionTerminated, domain.ErrSkipWindowExceeded)
)

// PreKeySource resolves the responder's private pre-keys named by an initial
// message. TakeOneTimePrivate must consume the key.
type PreKeySource interface {
	SignedPreKeyPrivate(id domain.SignedPreKeyID) (domain.X25519Private, bool, error)
	TakeOneTimePrivate(id domain.OneTimePreKeyID) (domain.X25519Private, bool, error)
}

// Session is an established secure channel with one peer. It is safe for
// concurrent use; calls are serialised.
//
// The zero value is not usable: every method reports
// domain.ErrSessionNotEstablished.
type Session struct {
	mu sync.Mutex

	id            domain.SessionID
	peer          domain.PrincipalID
	initiator     bool
	localIdentity domain.X25519Public
	peerIdentity  domain.X25519Public
	ad            []byte
	state         domain.RatchetState
	outgoing      []domain.OutgoingKey
	created       int64
	terminated    bool
}

// Initiate runs the initiator side of the handshake against bundle. When
// payload is non-nil it travels encrypted inside the initial message.
func Initiate(id domain.Identity, bundle domain.PreKeyBundle, payload []byte) (*Session, domain.Message, error) {
	res, err := x3dh.InitiatorRoot(id, bundle)
	if err != nil {
		return nil, domain.Message{}, err
	}
	defer res.Wipe()

	hks, nhkr, err := ratchet.InitialHeaderKeys(res.SK)
	if err != nil {
		return nil, domain.Message{}, err
	}
	defer memzero.ZeroAll(hks, nhkr)

	st, err := ratchet.InitAsInitiator(res.SK, bundle.SignedPreKey, hks, nhkr)
	if err != nil {
		return nil, domain.Message{}, err
	}
	s := &Session{
		id:            deriveID(res.SK),
		peer:          bundle.Principal,
		initiator:     true,
		localIdentity: id.XPub,
		peerIdentity:  bundle.IdentityKey,
		ad:            res.AD,
		state:         st,
		created:       time.Now().UTC().Unix(),
	}

	initial := &domain.InitialMessage{
		InitiatorIdentityKey: id.XPub,
		EphemeralKey:         res.EphemeralKey,
		SignedPreKeyID:       res.SignedPreKeyID,
		OneTimePreKeyID:      res.OneTimePreKeyID,
	}
	if payload != nil {
		em, err := s.encryptLocked(payload)
		if err != nil {
			s.Wipe()
			return nil, domain.Message{}, err
		}
		initial.Payload = &em
	}
	return s, domain.Message{
		Kind:    domain.MessageKindInitial,
		Version: domain.ProtocolVersion,
		Initial: initial,
	}, nil
}

// Accept runs the responder side for an initial message. The one-time
// pre-key it names is consumed even when the embedded payload later fails
// to decrypt.
func Accept(id domain.Identity, prekeys PreKeySource, msg domain.Message) (*Session, []byte, error) {
	if err := checkVersion(msg); err != nil {
		return nil, nil, err
	}
	if msg.Kind != domain.MessageKindInitial || msg.Initial == nil {
		return nil, nil, fmt.Errorf("%w: want %s, got %q", errUnexpectedKind, domain.MessageKindInitial, msg.Kind)
	}
	in := msg.Initial

	spkPriv, ok, err := prekeys.SignedPreKeyPrivate(in.SignedPreKeyID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown id %s", domain.ErrInvalidSignedPreKey, in.SignedPreKeyID)
	}
	defer spkPriv.Wipe()

	var opkPriv *domain.X25519Private
	if in.OneTimePreKeyID != "" {
		priv, ok, err := prekeys.TakeOneTimePrivate(in.OneTimePreKeyID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s already used", domain.ErrPreKeyExhausted, in.OneTimePreKeyID)
		}
		defer priv.Wipe()
		opkPriv = &priv
	}

	res, err := x3dh.ResponderRoot(id, spkPriv, opkPriv, *in)
	if err != nil {
		return nil, nil, err
	}
	defer res.Wipe()

	spkPub, err := crypto.PublicX25519(spkPriv)
	if err != nil {
		return nil, nil, err
	}
	hks, hkr, err := ratchet.InitialHeaderKeys(res.SK)
	if err != nil {
		return nil, nil, err
	}
	defer memzero.ZeroAll(hks, hkr)

	st, err := ratchet.InitAsResponder(res.SK, spkPriv, spkPub, hkr, hks)
	if err != nil {
		return nil, nil, err
	}
	s := &Session{
		id:            deriveID(res.SK),
		localIdentity: id.XPub,
		peerIdentity:  in.InitiatorIdentityKey,
		ad:            res.AD,
		state:         st,
		created:       time.Now().UTC().Unix(),
	}

	var pt []byte
	if in.Payload != nil {
		pt, err = ratchet.Decrypt(&s.state, s.ad, *in.Payload)
		if err != nil {
			s.Wipe()
			return nil, nil, err
		}
	}
	return s, pt, nil
}

// Restore rebuilds a session from a persisted record.
func Restore(rec domain.SessionRecord) (*Session, error) {
	if rec.ID.IsZero() || ratchet.State(&rec.Ratchet) == ratchet.Uninitialized || len(rec.AssociatedData) == 0 {
		return nil, domain.ErrSessionNotEstablished
	}
	s := &Session{
		id:            rec.ID,
		peer:          rec.Peer,
		initiator:     rec.Initiator,
		localIdentity: rec.LocalIdentity,
		peerIdentity:  rec.PeerIdentity,
		ad:            append([]byte(nil), rec.AssociatedData...),
		state:         ratchet.Clone(&rec.Ratchet),
		created:       rec.CreatedUTC,
		terminated:    rec.Terminated,
	}
	for _, o := range rec.Outgoing {
		o.MessageKey = append([]byte(nil), o.MessageKey...)
		s.outgoing = append(s.outgoing, o)
	}
	return s, nil
}

// ID returns SHA-256("session-id" || SK), stable for the life of the session.
func (s *Session) ID() domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// PeerIdentity returns the peer's X25519 identity key.
func (s *Session) PeerIdentity() domain.X25519Public {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerIdentity
}

// Peer returns the peer principal, if known. Responders learn it from the
// caller via SetPeer.
func (s *Session) Peer() domain.PrincipalID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// SetPeer records the peer principal.
func (s *Session) SetPeer(p domain.PrincipalID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = p
}

// Status reports the ratchet lifecycle stage.
func (s *Session) Status() ratchet.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ratchet.State(&s.state)
}

// Encrypt seals plaintext as the next standard message.
func (s *Session) Encrypt(plaintext []byte) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return domain.Message{}, err
	}
	em, err := s.encryptLocked(plaintext)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		Kind:     domain.MessageKindStandard,
		Version:  domain.ProtocolVersion,
		Standard: &em,
	}, nil
}

func (s *Session) encryptLocked(plaintext []byte) (domain.EncryptedMessage, error) {
	n := s.state.SendMessageIndex
	em, mk, err := ratchet.EncryptWithKey(&s.state, s.ad, plaintext)
	if err != nil {
		return domain.EncryptedMessage{}, err
	}
	if len(s.outgoing) == OutgoingCacheSize {
		memzero.Zero(s.outgoing[0].MessageKey)
		s.outgoing = s.outgoing[1:]
	}
	s.outgoing = append(s.outgoing, domain.OutgoingKey{Digest: digest(em), N: n, MessageKey: mk})
	return em, nil
}

// Decrypt opens a standard message from the peer. After
// domain.ErrSkipWindowExceeded the session refuses all further work.
func (s *Session) Decrypt(msg domain.Message) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return nil, err
	}
	if err := checkVersion(msg); err != nil {
		return nil, err
	}
	if msg.Kind != domain.MessageKindStandard {
		return nil, fmt.Errorf("%w: want %s, got %q", errUnexpectedKind, domain.MessageKindStandard, msg.Kind)
	}
	if msg.Standard == nil {
		return nil, errEmptyMessage
	}

	pt, err := ratchet.Decrypt(&s.state, s.ad, *msg.Standard)
	if errors.Is(err, domain.ErrSkipWindowExceeded) {
		s.terminated = true
	}
	return pt, err
}

// ReadOwn decrypts a message this side produced, as long as its key is still
// cached.
func (s *Session) ReadOwn(msg domain.Message) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return nil, err
	}
	var em *domain.EncryptedMessage
	switch msg.Kind {
	case domain.MessageKindStandard:
		em = msg.Standard
	case domain.MessageKindInitial:
		if msg.Initial != nil {
			em = msg.Initial.Payload
		}
	}
	if em == nil {
		return nil, errEmptyMessage
	}

	d := digest(*em)
	for _, o := range s.outgoing {
		if o.Digest == d {
			return ratchet.OpenWithKey(o.MessageKey, s.ad, *em)
		}
	}
	return nil, domain.ErrReplayedOrUnknownMessage
}

// CommitSender forgets cached outgoing keys with N <= *upTo, or all of them
// when upTo is nil.
func (s *Session) CommitSender(upTo *uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.outgoing[:0]
	for _, o := range s.outgoing {
		if upTo == nil || o.N <= *upTo {
			memzero.Zero(o.MessageKey)
			continue
		}
		kept = append(kept, o)
	}
	s.outgoing = kept
}

// CommitReceiver forgets skipped receive keys with N <= *upTo, or all of
// them when upTo is nil.
func (s *Session) CommitReceiver(upTo *uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ratchet.ForgetSkipped(&s.state, upTo)
}

// Record returns a deep copy of the session suitable for persistence.
func (s *Session) Record() domain.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.SessionRecord{
		ID:             s.id,
		Peer:           s.peer,
		Initiator:      s.initiator,
		LocalIdentity:  s.localIdentity,
		PeerIdentity:   s.peerIdentity,
		AssociatedData: append([]byte(nil), s.ad...),
		Ratchet:        ratchet.Clone(&s.state),
		CreatedUTC:     s.created,
		Terminated:     s.terminated,
	}
	for _, o := range s.outgoing {
		o.MessageKey = append([]byte(nil), o.MessageKey...)
		rec.Outgoing = append(rec.Outgoing, o)
	}
	return rec
}

// Wipe zeroes all key material. The session is unusable afterwards.
func (s *Session) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratchet.Wipe(&s.state)
	s.state = domain.RatchetState{}
	for _, o := range s.outgoing {
		memzero.Zero(o.MessageKey)
	}
	s.outgoing = nil
}

func (s *Session) usable() error {
	switch {
	case s.terminated:
		return errTerminated
	case ratchet.State(&s.state) == ratchet.Uninitialized:
		return domain.ErrSessionNotEstablished
	}
	return nil
}

func checkVersion(msg domain.Message) error {
	if msg.Version != domain.ProtocolVersion {
		return fmt.Errorf("%w: %d", domain.ErrUnsupportedVersion, msg.Version)
	}
	return nil
}

func deriveID(sk []byte) domain.SessionID {
	h := sha256.New()
	h.Write([]byte(sessionIDLabel))
	h.Write(sk)
	var id domain.SessionID
	copy(id[:], h.Sum(nil))
	return id
}

func digest(em domain.EncryptedMessage) string {
	h := sha256.New()
	h.Write(em.HeaderNonce)
	h.Write(em.HeaderCiphertext)
	return hex.EncodeToString(h.Sum(nil))
}
