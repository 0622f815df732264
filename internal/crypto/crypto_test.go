package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"portseal/internal/crypto"
	"portseal/internal/domain"
)

func TestDH_Agreement(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bPriv, bPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	ab, err := crypto.DH(aPriv, bPub)
	if err != nil {
		t.Fatalf("DH a->b: %v", err)
	}
	ba, err := crypto.DH(bPriv, aPub)
	if err != nil {
		t.Fatalf("DH b->a: %v", err)
	}
	if ab != ba {
		t.Fatal("shared secrets differ")
	}
}

func TestDH_RejectsLowOrderPoints(t *testing.T) {
	priv, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	for _, pub := range []domain.X25519Public{{}, {1}} {
		if _, err := crypto.DH(priv, pub); !errors.Is(err, crypto.ErrLowOrderPoint) {
			t.Fatalf("DH(%x): want ErrLowOrderPoint, got %v", pub[:2], err)
		}
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	sig := crypto.SignEd25519(priv, []byte("spk"))
	if !crypto.VerifyEd25519(pub, []byte("spk"), sig) {
		t.Fatal("valid signature rejected")
	}
	if crypto.VerifyEd25519(pub, []byte("spk!"), sig) {
		t.Fatal("signature over other message accepted")
	}
	if crypto.VerifyEd25519(pub, []byte("spk"), sig[:10]) {
		t.Fatal("truncated signature accepted")
	}
}

func TestSealOpen_TamperFails(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	nonce, ct, err := crypto.Seal(key, []byte("payload"), []byte("ad"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := crypto.Open(key, nonce, ct, []byte("ad"))
	if err != nil || string(pt) != "payload" {
		t.Fatalf("Open: %q, %v", pt, err)
	}
	ct[0] ^= 1
	if _, err := crypto.Open(key, nonce, ct, []byte("ad")); err == nil {
		t.Fatal("tampered ciphertext opened")
	}
	ct[0] ^= 1
	if _, err := crypto.Open(key, nonce, ct, []byte("other")); err == nil {
		t.Fatal("wrong associated data accepted")
	}
}

func TestHKDF_DeterministicAndDomainSeparated(t *testing.T) {
	a, err := crypto.HKDF([]byte("ikm"), nil, []byte("one"), 64)
	if err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	b, _ := crypto.HKDF([]byte("ikm"), nil, []byte("one"), 64)
	c, _ := crypto.HKDF([]byte("ikm"), nil, []byte("two"), 64)
	if !bytes.Equal(a, b) {
		t.Fatal("HKDF not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Fatal("different info produced equal output")
	}
}

func TestFingerprint_Length(t *testing.T) {
	if got := crypto.Fingerprint([]byte("k")); len(got) != 20 {
		t.Fatalf("fingerprint length = %d, want 20", len(got))
	}
}
