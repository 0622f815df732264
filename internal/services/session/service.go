package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"portseal/internal/domain"
	"portseal/internal/observability/metrics"
	"portseal/internal/protocol/session"
	"portseal/internal/util/memzero"
)

// ErrNoSession indicates there is no stored session with that id.
var ErrNoSession = errors.New("no such session")

// Service performs handshakes and keeps session records current.
type Service struct {
	ids      domain.IdentityStore
	sessions domain.SessionStore
	registry domain.PreKeyRegistry
	log      *slog.Logger

	// mu serialises load-modify-save of records.
	mu sync.Mutex
}

func New(
	ids domain.IdentityStore,
	sessions domain.SessionStore,
	registry domain.PreKeyRegistry,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ids:      ids,
		sessions: sessions,
		registry: registry,
		log:      log,
	}
}

// InitiateSession claims peer's bundle, runs X3DH as initiator and stores the
// session. payload, if non-nil, rides encrypted in the returned initial
// message.
func (s *Service) InitiateSession(
	ctx context.Context,
	peer domain.PrincipalID,
	payload []byte,
) (domain.SessionRecord, domain.Message, error) {
	rec, msg, err := s.initiate(ctx, peer, payload)
	metrics.HandshakesTotal.WithLabelValues("initiator", metrics.Result(err)).Inc()
	if err != nil {
		s.log.WarnContext(ctx, "handshake failed", "role", "initiator", "peer", peer, "error", err)
		return domain.SessionRecord{}, domain.Message{}, err
	}
	s.log.InfoContext(ctx, "session initiated",
		"session_id", rec.ID.String(),
		"peer", peer,
		"one_time_prekey", msg.Initial.OneTimePreKeyID != "",
	)
	return rec, msg, nil
}

func (s *Service) initiate(
	ctx context.Context,
	peer domain.PrincipalID,
	payload []byte,
) (domain.SessionRecord, domain.Message, error) {
	id, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.SessionRecord{}, domain.Message{}, err
	}
	defer id.Wipe()

	bundle, err := s.registry.Claim(ctx, peer)
	if err != nil {
		return domain.SessionRecord{}, domain.Message{}, fmt.Errorf("claim bundle for %s: %w", peer, err)
	}
	if bundle.OneTimePreKey == nil {
		s.log.WarnContext(ctx, "bundle has no one-time pre-key", "peer", peer)
	}

	sess, msg, err := session.Initiate(id, bundle, payload)
	if err != nil {
		return domain.SessionRecord{}, domain.Message{}, err
	}
	defer sess.Wipe()
	if sess.Peer() == "" {
		sess.SetPeer(peer)
	}
	sess.CommitSender(nil)

	rec := sess.Record()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sessions.SaveSession(rec); err != nil {
		return domain.SessionRecord{}, domain.Message{}, err
	}
	return rec, msg, nil
}

// AcceptSession runs X3DH as responder for an initial message and stores the
// session. It returns the embedded first payload, if any.
func (s *Service) AcceptSession(ctx context.Context, msg domain.Message) (domain.SessionRecord, []byte, error) {
	rec, pt, err := s.accept(msg)
	metrics.HandshakesTotal.WithLabelValues("responder", metrics.Result(err)).Inc()
	if err != nil {
		s.log.WarnContext(ctx, "handshake failed", "role", "responder", "error", err)
		return domain.SessionRecord{}, nil, err
	}
	s.log.InfoContext(ctx, "session accepted", "session_id", rec.ID.String(), "payload", pt != nil)
	return rec, pt, nil
}

func (s *Service) accept(msg domain.Message) (domain.SessionRecord, []byte, error) {
	id, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.SessionRecord{}, nil, err
	}
	defer id.Wipe()

	sess, pt, err := session.Accept(id, s.ids, msg)
	if err != nil {
		return domain.SessionRecord{}, nil, err
	}
	defer sess.Wipe()

	rec := sess.Record()
	s.mu.Lock()
	defer s.mu.Unlock()
	// Without a one-time key a resent initial message derives the same
	// session; accepting it again would roll the live record back.
	_, exists, err := s.sessions.LoadSession(rec.ID)
	if err == nil && exists {
		err = fmt.Errorf("%w: session %s already accepted", domain.ErrReplayedOrUnknownMessage, rec.ID)
	}
	if err != nil {
		memzero.Zero(pt)
		return domain.SessionRecord{}, nil, err
	}
	if err := s.sessions.SaveSession(rec); err != nil {
		return domain.SessionRecord{}, nil, err
	}
	return rec, pt, nil
}

func (s *Service) GetSession(id domain.SessionID) (domain.SessionRecord, bool, error) {
	return s.sessions.LoadSession(id)
}

func (s *Service) ListSessions() ([]domain.SessionRecord, error) {
	return s.sessions.ListSessions()
}

func (s *Service) DeleteSession(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.DeleteSession(id)
}

// SetPeer names the principal on the other end of a session, typically after
// accepting, when the initial message carried only keys.
func (s *Service) SetPeer(id domain.SessionID, peer domain.PrincipalID) error {
	return s.With(context.Background(), id, func(sess *session.Session) error {
		sess.SetPeer(peer)
		return nil
	})
}

// With restores session id, runs fn against it and saves the result. The
// record is saved even when fn fails: a failed decrypt changes nothing, and a
// fatal one marks the session terminated, which must stick.
func (s *Service) With(ctx context.Context, id domain.SessionID, fn func(*session.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.sessions.LoadSession(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	sess, err := session.Restore(rec)
	if err != nil {
		return err
	}
	defer sess.Wipe()

	fnErr := fn(sess)
	if err := s.sessions.SaveSession(sess.Record()); err != nil {
		return errors.Join(fnErr, err)
	}
	if errors.Is(fnErr, domain.ErrSkipWindowExceeded) {
		s.log.ErrorContext(ctx, "session terminated", "session_id", id.String(), "error", fnErr)
	}
	return fnErr
}

var _ domain.SessionService = (*Service)(nil)
