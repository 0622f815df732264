package ratchet_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"portseal/internal/crypto"
	"portseal/internal/domain"
	"portseal/internal/protocol/ratchet"
)

var testAD = bytes.Repeat([]byte{0xAD}, 64)

// pair builds an initiator and responder state from a simulated X3DH secret.
func pair(t *testing.T) (alice, bob domain.RatchetState) {
	t.Helper()
	sk := bytes.Repeat([]byte{0x42}, 32)

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	hks, hkr, err := ratchet.InitialHeaderKeys(sk)
	if err != nil {
		t.Fatalf("InitialHeaderKeys: %v", err)
	}
	alice, err = ratchet.InitAsInitiator(sk, spkPub, hks, hkr)
	if err != nil {
		t.Fatalf("InitAsInitiator: %v", err)
	}
	bob, err = ratchet.InitAsResponder(sk, spkPriv, spkPub, hkr, hks)
	if err != nil {
		t.Fatalf("InitAsResponder: %v", err)
	}
	return alice, bob
}

func mustEncrypt(t *testing.T, st *domain.RatchetState, pt string) domain.EncryptedMessage {
	t.Helper()
	msg, err := ratchet.Encrypt(st, testAD, []byte(pt))
	if err != nil {
		t.Fatalf("Encrypt(%q): %v", pt, err)
	}
	return msg
}

func mustDecrypt(t *testing.T, st *domain.RatchetState, msg domain.EncryptedMessage, want string) {
	t.Helper()
	pt, err := ratchet.Decrypt(st, testAD, msg)
	if err != nil {
		t.Fatalf("Decrypt (want %q): %v", want, err)
	}
	if string(pt) != want {
		t.Fatalf("got %q, want %q", pt, want)
	}
}

func TestDoubleRatchet_OneRoundTrip(t *testing.T) {
	alice, bob := pair(t)

	if got := ratchet.State(&alice); got != ratchet.Established {
		t.Fatalf("initiator state = %v, want established", got)
	}
	if got := ratchet.State(&bob); got != ratchet.Initialized {
		t.Fatalf("responder state = %v, want initialized", got)
	}

	msg := mustEncrypt(t, &alice, "hi")
	mustDecrypt(t, &bob, msg, "hi")

	if got := ratchet.State(&bob); got != ratchet.Established {
		t.Fatalf("responder state after first message = %v, want established", got)
	}
	reply := mustEncrypt(t, &bob, "hello back")
	mustDecrypt(t, &alice, reply, "hello back")
}

func TestResponderCannotSendFirst(t *testing.T) {
	_, bob := pair(t)
	if _, err := ratchet.Encrypt(&bob, testAD, []byte("early")); !errors.Is(err, domain.ErrSessionNotEstablished) {
		t.Fatalf("want ErrSessionNotEstablished, got %v", err)
	}
}

func TestZeroStateIsNotEstablished(t *testing.T) {
	var st domain.RatchetState
	if _, err := ratchet.Encrypt(&st, testAD, []byte("x")); !errors.Is(err, domain.ErrSessionNotEstablished) {
		t.Fatalf("Encrypt: want ErrSessionNotEstablished, got %v", err)
	}
	if _, err := ratchet.Decrypt(&st, testAD, domain.EncryptedMessage{}); !errors.Is(err, domain.ErrSessionNotEstablished) {
		t.Fatalf("Decrypt: want ErrSessionNotEstablished, got %v", err)
	}
}

func TestHeaderIsFixedSizeAndHidden(t *testing.T) {
	alice, _ := pair(t)
	msg := mustEncrypt(t, &alice, "payload")

	if got := len(msg.HeaderCiphertext); got != ratchet.HeaderSize+crypto.TagSize {
		t.Fatalf("header ciphertext length = %d", got)
	}
	if bytes.Contains(msg.HeaderCiphertext, alice.DiffieHellmanPublic[:8]) {
		t.Fatal("ratchet public key visible in header ciphertext")
	}
	if len(msg.AuthTag) != crypto.TagSize || len(msg.BodyCiphertext) != len("payload") {
		t.Fatalf("unexpected body layout: ct=%d tag=%d", len(msg.BodyCiphertext), len(msg.AuthTag))
	}
}

func TestOutOfOrderDelivery(t *testing.T) {
	alice, bob := pair(t)

	m1 := mustEncrypt(t, &alice, "m1")
	m2 := mustEncrypt(t, &alice, "m2")
	m3 := mustEncrypt(t, &alice, "m3")

	mustDecrypt(t, &bob, m3, "m3")
	if got := ratchet.SkippedKeys(&bob); got != 2 {
		t.Fatalf("skipped keys after m3 = %d, want 2", got)
	}
	mustDecrypt(t, &bob, m1, "m1")
	mustDecrypt(t, &bob, m2, "m2")
	if got := ratchet.SkippedKeys(&bob); got != 0 {
		t.Fatalf("skipped keys after catch-up = %d, want 0", got)
	}
}

func TestOutOfOrderAcrossRatchetSteps(t *testing.T) {
	alice, bob := pair(t)

	a1 := mustEncrypt(t, &alice, "a1")
	a2 := mustEncrypt(t, &alice, "a2")
	mustDecrypt(t, &bob, a1, "a1")

	b1 := mustEncrypt(t, &bob, "b1")
	mustDecrypt(t, &alice, b1, "b1")

	// a3 belongs to alice's second chain; a2 is still outstanding from the first.
	a3 := mustEncrypt(t, &alice, "a3")
	mustDecrypt(t, &bob, a3, "a3")
	mustDecrypt(t, &bob, a2, "a2")
}

func TestReplayRejected(t *testing.T) {
	alice, bob := pair(t)

	m1 := mustEncrypt(t, &alice, "m1")
	mustDecrypt(t, &bob, m1, "m1")

	if _, err := ratchet.Decrypt(&bob, testAD, m1); !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage, got %v", err)
	}

	// A skipped key is usable exactly once.
	m2 := mustEncrypt(t, &alice, "m2")
	m3 := mustEncrypt(t, &alice, "m3")
	mustDecrypt(t, &bob, m3, "m3")
	mustDecrypt(t, &bob, m2, "m2")
	if _, err := ratchet.Decrypt(&bob, testAD, m2); !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("second delivery of m2: want ErrReplayedOrUnknownMessage, got %v", err)
	}
}

func TestReplayFromPreviousChainRejected(t *testing.T) {
	alice, bob := pair(t)

	a1 := mustEncrypt(t, &alice, "a1")
	mustDecrypt(t, &bob, a1, "a1")
	mustDecrypt(t, &alice, mustEncrypt(t, &bob, "b1"), "b1")
	mustDecrypt(t, &bob, mustEncrypt(t, &alice, "a2"), "a2")

	if _, err := ratchet.Decrypt(&bob, testAD, a1); !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage, got %v", err)
	}

	// Two DH steps later the header key for a1 is gone: the duplicate no
	// longer opens at all and is reported as unauthenticated.
	mustDecrypt(t, &alice, mustEncrypt(t, &bob, "b2"), "b2")
	mustDecrypt(t, &bob, mustEncrypt(t, &alice, "a3"), "a3")

	before := ratchet.Clone(&bob)
	if _, err := ratchet.Decrypt(&bob, testAD, a1); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("two steps later: want ErrAuthenticationFailed, got %v", err)
	}
	if bob.ReceiveMessageIndex != before.ReceiveMessageIndex || !bytes.Equal(bob.RootKey, before.RootKey) {
		t.Fatal("rejected duplicate changed state")
	}
}

func TestSkipWindowExceeded(t *testing.T) {
	alice, bob := pair(t)

	mustDecrypt(t, &bob, mustEncrypt(t, &alice, "first"), "first")
	for i := 0; i < ratchet.MaxSkip+1; i++ {
		mustEncrypt(t, &alice, fmt.Sprintf("lost-%d", i))
	}
	far := mustEncrypt(t, &alice, "far")

	before := ratchet.Clone(&bob)
	if _, err := ratchet.Decrypt(&bob, testAD, far); !errors.Is(err, domain.ErrSkipWindowExceeded) {
		t.Fatalf("want ErrSkipWindowExceeded, got %v", err)
	}
	if bob.ReceiveMessageIndex != before.ReceiveMessageIndex || ratchet.SkippedKeys(&bob) != 0 {
		t.Fatal("failed decrypt changed state")
	}
}

func TestSkipWindowAtLimit(t *testing.T) {
	alice, bob := pair(t)

	for i := 0; i < ratchet.MaxSkip; i++ {
		mustEncrypt(t, &alice, "lost")
	}
	mustDecrypt(t, &bob, mustEncrypt(t, &alice, "edge"), "edge")
	if got := ratchet.SkippedKeys(&bob); got != ratchet.MaxSkip {
		t.Fatalf("skipped keys = %d, want %d", got, ratchet.MaxSkip)
	}

	// The cache is full; any further gap is refused rather than evicting.
	mustEncrypt(t, &alice, "lost again")
	if _, err := ratchet.Decrypt(&bob, testAD, mustEncrypt(t, &alice, "next")); !errors.Is(err, domain.ErrSkipWindowExceeded) {
		t.Fatalf("want ErrSkipWindowExceeded, got %v", err)
	}
}

func TestTamperLeavesStateUnchanged(t *testing.T) {
	cases := map[string]func(m *domain.EncryptedMessage){
		"header":    func(m *domain.EncryptedMessage) { m.HeaderCiphertext[0] ^= 1 },
		"body":      func(m *domain.EncryptedMessage) { m.BodyCiphertext[0] ^= 1 },
		"tag":       func(m *domain.EncryptedMessage) { m.AuthTag[0] ^= 1 },
		"bodyNonce": func(m *domain.EncryptedMessage) { m.BodyNonce[0] ^= 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			alice, bob := pair(t)
			mustDecrypt(t, &bob, mustEncrypt(t, &alice, "warm up"), "warm up")

			good := mustEncrypt(t, &alice, "secret")
			bad := domain.EncryptedMessage{
				HeaderCiphertext: bytes.Clone(good.HeaderCiphertext),
				HeaderNonce:      bytes.Clone(good.HeaderNonce),
				BodyCiphertext:   bytes.Clone(good.BodyCiphertext),
				BodyNonce:        bytes.Clone(good.BodyNonce),
				AuthTag:          bytes.Clone(good.AuthTag),
			}
			mutate(&bad)

			before := ratchet.Clone(&bob)
			if _, err := ratchet.Decrypt(&bob, testAD, bad); !errors.Is(err, domain.ErrAuthenticationFailed) {
				t.Fatalf("want ErrAuthenticationFailed, got %v", err)
			}
			if !bytes.Equal(before.ReceiveChainKey, bob.ReceiveChainKey) || before.ReceiveMessageIndex != bob.ReceiveMessageIndex {
				t.Fatal("receive chain advanced on failure")
			}
			mustDecrypt(t, &bob, good, "secret")
		})
	}
}

func TestWrongAssociatedDataFails(t *testing.T) {
	alice, bob := pair(t)
	msg := mustEncrypt(t, &alice, "bound")
	if _, err := ratchet.Decrypt(&bob, []byte("other"), msg); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
}

func TestDHStepRotatesRootKey(t *testing.T) {
	alice, bob := pair(t)
	old := mustEncrypt(t, &alice, "old chain")
	mustDecrypt(t, &bob, old, "old chain")

	rootBefore := bytes.Clone(alice.RootKey)
	dhBefore := alice.DiffieHellmanPublic
	mustDecrypt(t, &alice, mustEncrypt(t, &bob, "turn"), "turn")

	if bytes.Equal(rootBefore, alice.RootKey) {
		t.Fatal("root key unchanged after DH step")
	}
	if dhBefore == alice.DiffieHellmanPublic {
		t.Fatal("ratchet key pair unchanged after DH step")
	}
	if alice.PreviousChainLength != 1 || alice.SendMessageIndex != 0 {
		t.Fatalf("counters after step: pn=%d ns=%d", alice.PreviousChainLength, alice.SendMessageIndex)
	}

	// A message from the new chain can't be opened with the old one's key.
	fresh := mustEncrypt(t, &alice, "new chain")
	if _, err := ratchet.OpenWithKey(make([]byte, 32), testAD, fresh); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("want ErrAuthenticationFailed, got %v", err)
	}
	mustDecrypt(t, &bob, fresh, "new chain")
}

func TestEncryptWithKeyReadBack(t *testing.T) {
	alice, bob := pair(t)
	msg, mk, err := ratchet.EncryptWithKey(&alice, testAD, []byte("mine"))
	if err != nil {
		t.Fatalf("EncryptWithKey: %v", err)
	}
	pt, err := ratchet.OpenWithKey(mk, testAD, msg)
	if err != nil || string(pt) != "mine" {
		t.Fatalf("OpenWithKey = %q, %v", pt, err)
	}
	mustDecrypt(t, &bob, msg, "mine")
}

func TestBidirectionalConversation(t *testing.T) {
	alice, bob := pair(t)
	for round := 0; round < 5; round++ {
		for i := 0; i < round+1; i++ {
			text := fmt.Sprintf("a->b %d/%d", round, i)
			mustDecrypt(t, &bob, mustEncrypt(t, &alice, text), text)
		}
		for i := 0; i < 2; i++ {
			text := fmt.Sprintf("b->a %d/%d", round, i)
			mustDecrypt(t, &alice, mustEncrypt(t, &bob, text), text)
		}
	}
}

func TestEmptyPlaintext(t *testing.T) {
	alice, bob := pair(t)
	pt, err := ratchet.Decrypt(&bob, testAD, mustEncrypt(t, &alice, ""))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt == nil || len(pt) != 0 {
		t.Fatalf("want empty non-nil plaintext, got %v", pt)
	}
}

func TestForgetSkipped(t *testing.T) {
	alice, bob := pair(t)
	m1 := mustEncrypt(t, &alice, "m1")
	mustEncrypt(t, &alice, "m2")
	mustDecrypt(t, &bob, mustEncrypt(t, &alice, "m3"), "m3")

	upTo := uint32(0)
	ratchet.ForgetSkipped(&bob, &upTo)
	if got := ratchet.SkippedKeys(&bob); got != 1 {
		t.Fatalf("skipped keys = %d, want 1", got)
	}
	if _, err := ratchet.Decrypt(&bob, testAD, m1); !errors.Is(err, domain.ErrReplayedOrUnknownMessage) {
		t.Fatalf("want ErrReplayedOrUnknownMessage, got %v", err)
	}
	ratchet.ForgetSkipped(&bob, nil)
	if got := ratchet.SkippedKeys(&bob); got != 0 {
		t.Fatalf("skipped keys = %d, want 0", got)
	}
}
