package session_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"portseal/internal/domain"
	"portseal/internal/observability/logging"
	"portseal/internal/protocol/session"
	"portseal/internal/registry"
	"portseal/internal/services/identity"
	sessionsvc "portseal/internal/services/session"
	"portseal/internal/store"
)

const passphrase = "Correct-Horse-9-Battery"

type party struct {
	ids      *identity.Service
	sessions *sessionsvc.Service
}

func newParty(t *testing.T, reg domain.PreKeyRegistry, name domain.PrincipalID, opks int) party {
	t.Helper()
	ks, err := store.CreateKeystore(t.TempDir(), passphrase, store.KDFScrypt)
	if err != nil {
		t.Fatalf("CreateKeystore: %v", err)
	}
	t.Cleanup(ks.Close)

	ids := identity.New(store.NewIdentityFileStore(ks), store.NewPrekeyFileStore(ks))
	if _, _, err := ids.GenerateIdentity(); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if _, _, err := ids.GeneratePreKeys(opks); err != nil {
		t.Fatalf("GeneratePreKeys: %v", err)
	}
	bundle, err := ids.PublicBundle(name)
	if err != nil {
		t.Fatalf("PublicBundle: %v", err)
	}
	if err := reg.Publish(context.Background(), bundle); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return party{
		ids:      ids,
		sessions: sessionsvc.New(ids, store.NewSessionFileStore(ks), reg, logging.Discard()),
	}
}

func TestInitiateAndAccept(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 1)
	bob := newParty(t, reg, "bob", 1)

	aRec, msg, err := alice.sessions.InitiateSession(ctx, "bob", []byte("hello bob"))
	if err != nil {
		t.Fatalf("InitiateSession: %v", err)
	}
	if aRec.Peer != "bob" || !aRec.Initiator {
		t.Fatalf("unexpected initiator record: peer=%q initiator=%v", aRec.Peer, aRec.Initiator)
	}
	if msg.Initial == nil || msg.Initial.OneTimePreKeyID == "" {
		t.Fatal("initial message should name a one-time pre-key")
	}

	bRec, pt, err := bob.sessions.AcceptSession(ctx, msg)
	if err != nil {
		t.Fatalf("AcceptSession: %v", err)
	}
	if !bytes.Equal(pt, []byte("hello bob")) {
		t.Fatalf("payload = %q", pt)
	}
	if bRec.ID != aRec.ID {
		t.Fatal("parties derived different session ids")
	}

	// The one-time key is gone; replaying the initial message fails.
	if _, _, err := bob.sessions.AcceptSession(ctx, msg); !errors.Is(err, domain.ErrPreKeyExhausted) {
		t.Fatalf("want ErrPreKeyExhausted on replayed initial message, got %v", err)
	}

	if err := bob.sessions.SetPeer(bRec.ID, "alice"); err != nil {
		t.Fatalf("SetPeer: %v", err)
	}
	got, ok, err := bob.sessions.GetSession(bRec.ID)
	if err != nil || !ok || got.Peer != "alice" {
		t.Fatalf("GetSession: ok=%v err=%v peer=%q", ok, err, got.Peer)
	}

	list, err := alice.sessions.ListSessions()
	if err != nil || len(list) != 1 || list[0].ID != aRec.ID {
		t.Fatalf("ListSessions: %v, %d records", err, len(list))
	}
}

func TestAcceptSession_RefusesResentInitialWithoutOneTimeKey(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	bob := newParty(t, reg, "bob", 0)

	aRec, initial, err := alice.sessions.InitiateSession(ctx, "bob", []byte("hello"))
	if err != nil {
		t.Fatalf("InitiateSession: %v", err)
	}
	bRec, _, err := bob.sessions.AcceptSession(ctx, initial)
	if err != nil {
		t.Fatalf("AcceptSession: %v", err)
	}

	var sent []domain.Message
	err = alice.sessions.With(ctx, aRec.ID, func(s *session.Session) error {
		for _, p := range []string{"two", "three"} {
			m, err := s.Encrypt([]byte(p))
			if err != nil {
				return err
			}
			sent = append(sent, m)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	for _, m := range sent {
		err := bob.sessions.With(ctx, bRec.ID, func(s *session.Session) error {
			_, err := s.Decrypt(m)
			return err
		})
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
	}
	before, _, err := bob.sessions.GetSession(bRec.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	_, pt, err := bob.sessions.AcceptSession(ctx, initial)
	if !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage, got %v", err)
	}
	if pt != nil {
		t.Fatalf("resent initial message delivered %q", pt)
	}

	after, _, err := bob.sessions.GetSession(bRec.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if after.Ratchet.ReceiveMessageIndex != before.Ratchet.ReceiveMessageIndex {
		t.Fatalf("receive index moved from %d to %d", before.Ratchet.ReceiveMessageIndex, after.Ratchet.ReceiveMessageIndex)
	}
	err = bob.sessions.With(ctx, bRec.ID, func(s *session.Session) error {
		_, err := s.Decrypt(sent[0])
		return err
	})
	if !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage for an already read message, got %v", err)
	}
}

func TestInitiateSession_DoesNotPersistInitialMessageKey(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	_ = newParty(t, reg, "bob", 0)

	rec, _, err := alice.sessions.InitiateSession(ctx, "bob", []byte("hello"))
	if err != nil {
		t.Fatalf("InitiateSession: %v", err)
	}
	stored, ok, err := alice.sessions.GetSession(rec.ID)
	if err != nil || !ok {
		t.Fatalf("GetSession: ok=%v err=%v", ok, err)
	}
	if len(rec.Outgoing) != 0 || len(stored.Outgoing) != 0 {
		t.Fatalf("outgoing keys persisted: returned=%d stored=%d", len(rec.Outgoing), len(stored.Outgoing))
	}
}

func TestWith_PersistsRatchetState(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	bob := newParty(t, reg, "bob", 0)

	aRec, msg, err := alice.sessions.InitiateSession(ctx, "bob", nil)
	if err != nil {
		t.Fatalf("InitiateSession: %v", err)
	}
	if msg.Initial.OneTimePreKeyID != "" {
		t.Fatal("no one-time keys were published")
	}
	bRec, _, err := bob.sessions.AcceptSession(ctx, msg)
	if err != nil {
		t.Fatalf("AcceptSession: %v", err)
	}

	var sent []domain.Message
	for _, p := range []string{"one", "two"} {
		err := alice.sessions.With(ctx, aRec.ID, func(s *session.Session) error {
			m, err := s.Encrypt([]byte(p))
			sent = append(sent, m)
			return err
		})
		if err != nil {
			t.Fatalf("Encrypt %s: %v", p, err)
		}
	}
	if bytes.Equal(sent[0].Standard.HeaderCiphertext, sent[1].Standard.HeaderCiphertext) {
		t.Fatal("ratchet did not advance between persisted encrypts")
	}

	// Deliver out of order across two restores.
	for i, want := range []string{"two", "one"} {
		m := sent[1-i]
		err := bob.sessions.With(ctx, bRec.ID, func(s *session.Session) error {
			pt, err := s.Decrypt(m)
			if err == nil && string(pt) != want {
				t.Errorf("got %q, want %q", pt, want)
			}
			return err
		})
		if err != nil {
			t.Fatalf("Decrypt %s: %v", want, err)
		}
	}

	// Replay after persistence is still detected.
	err = bob.sessions.With(ctx, bRec.ID, func(s *session.Session) error {
		_, err := s.Decrypt(sent[0])
		return err
	})
	if !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage, got %v", err)
	}
}

func TestInitiateSession_UnknownPeer(t *testing.T) {
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	if _, _, err := alice.sessions.InitiateSession(context.Background(), "carol", nil); !errors.Is(err, domain.ErrPrincipalNotFound) {
		t.Fatalf("want ErrPrincipalNotFound, got %v", err)
	}
}

func TestWith_UnknownSession(t *testing.T) {
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	err := alice.sessions.With(context.Background(), domain.SessionID{1}, func(*session.Session) error { return nil })
	if !errors.Is(err, sessionsvc.ErrNoSession) {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{})
	alice := newParty(t, reg, "alice", 0)
	_ = newParty(t, reg, "bob", 0)

	rec, _, err := alice.sessions.InitiateSession(ctx, "bob", nil)
	if err != nil {
		t.Fatalf("InitiateSession: %v", err)
	}
	if err := alice.sessions.DeleteSession(rec.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, ok, err := alice.sessions.GetSession(rec.ID); err != nil || ok {
		t.Fatalf("session still present: ok=%v err=%v", ok, err)
	}
}
