package ratchet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"portseal/internal/crypto"
	"portseal/internal/domain"
	"portseal/internal/util/memzero"
)

const (
	// MaxSkip bounds the skipped-key cache and any single gap in a chain.
	MaxSkip = 1000

	// HeaderSize is the length of an encoded header plaintext.
	HeaderSize = 32 + 4 + 4

	keySize = 32

	rootInfo       = "portseal-ratchet-root"
	headerSendInfo = "header-encrypt-sending"
	headerRecvInfo = "header-encrypt-receiving"
)

var (
	headerSalt = []byte("portseal-header-keys")

	ckMessageInput = []byte{0x02}
	ckChainInput   = []byte{0x01}
)

// Status is the lifecycle stage of a RatchetState.
type Status int

const (
	// Uninitialized is the zero state.
	Uninitialized Status = iota
	// Initialized means a responder waiting for its first message.
	Initialized
	// Established means the state can both send and receive.
	Established
)

func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Established:
		return "established"
	default:
		return "uninitialized"
	}
}

var errMissingRootKey = errors.New("ratchet: missing root key")

// InitialHeaderKeys derives the two header keys both parties share after
// X3DH. sending protects the initiator's first chain; receiving protects the
// responder's first chain.
func InitialHeaderKeys(sk []byte) (sending, receiving []byte, err error) {
	if len(sk) != keySize {
		return nil, nil, errMissingRootKey
	}
	sending, err = crypto.HKDF(sk, headerSalt, []byte(headerSendInfo), keySize)
	if err != nil {
		return nil, nil, err
	}
	receiving, err = crypto.HKDF(sk, headerSalt, []byte(headerRecvInfo), keySize)
	if err != nil {
		memzero.Zero(sending)
		return nil, nil, err
	}
	return sending, receiving, nil
}

// InitAsInitiator performs the first DH step against the responder's signed
// pre-key so the initiator can send straight away.
func InitAsInitiator(sk []byte, peerSignedPreKey domain.X25519Public, hks, nhkr []byte) (domain.RatchetState, error) {
	if len(sk) != keySize {
		return domain.RatchetState{}, errMissingRootKey
	}
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	rk, cks, nhks, err := kdfRKDH(sk, priv, peerSignedPreKey)
	if err != nil {
		priv.Wipe()
		return domain.RatchetState{}, err
	}
	return domain.RatchetState{
		RootKey:                 rk,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: peerSignedPreKey,
		SendChainKey:            cks,
		SendHeaderKey:           clone(hks),
		NextSendHeaderKey:       nhks,
		NextReceiveHeaderKey:    clone(nhkr),
		SkippedKeys:             make(map[string]domain.SkippedKey),
	}, nil
}

// InitAsResponder uses the signed pre-key pair as the first ratchet key. The
// state cannot send until the initiator's first header has been received.
func InitAsResponder(sk []byte, spkPriv domain.X25519Private, spkPub domain.X25519Public, nhks, nhkr []byte) (domain.RatchetState, error) {
	if len(sk) != keySize {
		return domain.RatchetState{}, errMissingRootKey
	}
	return domain.RatchetState{
		RootKey:              clone(sk),
		DiffieHellmanPrivate: spkPriv,
		DiffieHellmanPublic:  spkPub,
		NextSendHeaderKey:    clone(nhks),
		NextReceiveHeaderKey: clone(nhkr),
		SkippedKeys:          make(map[string]domain.SkippedKey),
	}, nil
}

// State reports where st is in its lifecycle.
func State(st *domain.RatchetState) Status {
	switch {
	case st == nil || len(st.RootKey) == 0:
		return Uninitialized
	case len(st.SendChainKey) == 0:
		return Initialized
	default:
		return Established
	}
}

// Encrypt seals plaintext as the next message of the sending chain.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.EncryptedMessage, error) {
	msg, mk, err := EncryptWithKey(st, ad, plaintext)
	memzero.Zero(mk)
	return msg, err
}

// EncryptWithKey is Encrypt but also hands back the message key. The caller
// owns mk and must wipe it.
func EncryptWithKey(st *domain.RatchetState, ad, plaintext []byte) (domain.EncryptedMessage, []byte, error) {
	if State(st) != Established || len(st.SendHeaderKey) == 0 {
		return domain.EncryptedMessage{}, nil, domain.ErrSessionNotEstablished
	}
	ck, mk := kdfCK(st.SendChainKey)

	header := encodeHeader(domain.RatchetHeader{
		DH: st.DiffieHellmanPublic,
		PN: st.PreviousChainLength,
		N:  st.SendMessageIndex,
	})
	hNonce, hct, err := crypto.Seal(st.SendHeaderKey, header, ad)
	if err != nil {
		memzero.ZeroAll(ck, mk)
		return domain.EncryptedMessage{}, nil, err
	}
	msg := domain.EncryptedMessage{HeaderCiphertext: hct, HeaderNonce: hNonce}
	if err := sealBody(mk, ad, plaintext, &msg); err != nil {
		memzero.ZeroAll(ck, mk)
		return domain.EncryptedMessage{}, nil, err
	}

	memzero.Zero(st.SendChainKey)
	st.SendChainKey = ck
	st.SendMessageIndex++
	return msg, mk, nil
}

// OpenWithKey decrypts the body of msg with a known message key. It does not
// touch any ratchet state.
func OpenWithKey(mk, ad []byte, msg domain.EncryptedMessage) ([]byte, error) {
	pt, err := crypto.Open(mk, msg.BodyNonce, joinTag(msg), bodyAD(ad, msg))
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return pt, nil
}

// Decrypt opens msg. Every step runs on a copy of st which replaces st only
// when the body authenticates, so a failed call leaves st untouched.
func Decrypt(st *domain.RatchetState, ad []byte, msg domain.EncryptedMessage) ([]byte, error) {
	if State(st) == Uninitialized {
		return nil, domain.ErrSessionNotEstablished
	}
	work := Clone(st)
	pt, err := decrypt(&work, ad, msg)
	if err != nil {
		Wipe(&work)
		return nil, err
	}
	old := *st
	*st = work
	Wipe(&old)
	return pt, nil
}

func decrypt(st *domain.RatchetState, ad []byte, msg domain.EncryptedMessage) ([]byte, error) {
	pt, staleHeader, err := trySkipped(st, ad, msg)
	if err != nil || pt != nil {
		return pt, err
	}

	if h, ok := openHeader(st.ReceiveHeaderKey, ad, msg); ok {
		return receive(st, ad, h, msg)
	}
	if h, ok := openHeader(st.NextReceiveHeaderKey, ad, msg); ok {
		if err := skipMessageKeys(st, h.PN); err != nil {
			return nil, err
		}
		if err := dhStep(st, h); err != nil {
			return nil, err
		}
		return receive(st, ad, h, msg)
	}
	if _, ok := openHeader(st.PreviousReceiveHeader, ad, msg); ok || staleHeader {
		return nil, domain.ErrReplayedOrUnknownMessage
	}
	return nil, domain.ErrAuthenticationFailed
}

// trySkipped looks msg up in the skipped-key cache. staleHeader reports a
// header that opened under a cached header key without a matching entry.
func trySkipped(st *domain.RatchetState, ad []byte, msg domain.EncryptedMessage) (pt []byte, staleHeader bool, err error) {
	tried := make([][]byte, 0, 2)
	for _, sk := range st.SkippedKeys {
		if containsKey(tried, sk.HeaderKey) {
			continue
		}
		tried = append(tried, sk.HeaderKey)

		h, ok := openHeader(sk.HeaderKey, ad, msg)
		if !ok {
			continue
		}
		id := skippedKeyID(h.DH, h.N)
		entry, found := st.SkippedKeys[id]
		if !found || !bytes.Equal(entry.HeaderKey, sk.HeaderKey) {
			staleHeader = true
			continue
		}
		pt, err := OpenWithKey(entry.MessageKey, ad, msg)
		if err != nil {
			return nil, false, err
		}
		memzero.Zero(entry.MessageKey)
		delete(st.SkippedKeys, id)
		return nonNil(pt), false, nil
	}
	return nil, staleHeader, nil
}

// receive advances the current receiving chain to h.N and opens the body.
func receive(st *domain.RatchetState, ad []byte, h domain.RatchetHeader, msg domain.EncryptedMessage) ([]byte, error) {
	if h.N < st.ReceiveMessageIndex {
		return nil, domain.ErrReplayedOrUnknownMessage
	}
	if err := skipMessageKeys(st, h.N); err != nil {
		return nil, err
	}
	ck, mk := kdfCK(st.ReceiveChainKey)
	defer memzero.Zero(mk)

	pt, err := OpenWithKey(mk, ad, msg)
	if err != nil {
		memzero.Zero(ck)
		return nil, err
	}
	memzero.Zero(st.ReceiveChainKey)
	st.ReceiveChainKey = ck
	st.ReceiveMessageIndex = h.N + 1
	return nonNil(pt), nil
}

// skipMessageKeys caches message keys of the receiving chain up to until.
func skipMessageKeys(st *domain.RatchetState, until uint32) error {
	if len(st.ReceiveChainKey) == 0 || until <= st.ReceiveMessageIndex {
		return nil
	}
	gap := uint64(until - st.ReceiveMessageIndex)
	if gap > MaxSkip || uint64(len(st.SkippedKeys))+gap > MaxSkip {
		return fmt.Errorf("%w: gap of %d with %d cached", domain.ErrSkipWindowExceeded, gap, len(st.SkippedKeys))
	}
	if st.SkippedKeys == nil {
		st.SkippedKeys = make(map[string]domain.SkippedKey)
	}
	for st.ReceiveMessageIndex < until {
		ck, mk := kdfCK(st.ReceiveChainKey)
		st.SkippedKeys[skippedKeyID(st.PeerDiffieHellmanPublic, st.ReceiveMessageIndex)] = domain.SkippedKey{
			HeaderKey:  clone(st.ReceiveHeaderKey),
			PeerDH:     st.PeerDiffieHellmanPublic,
			N:          st.ReceiveMessageIndex,
			MessageKey: mk,
		}
		memzero.Zero(st.ReceiveChainKey)
		st.ReceiveChainKey = ck
		st.ReceiveMessageIndex++
	}
	return nil
}

// dhStep turns the ratchet on a header carrying a new peer DH key.
func dhStep(st *domain.RatchetState, h domain.RatchetHeader) error {
	st.PreviousChainLength = st.SendMessageIndex
	st.SendMessageIndex = 0
	st.ReceiveMessageIndex = 0

	memzero.Zero(st.PreviousReceiveHeader)
	st.PreviousReceiveHeader = st.ReceiveHeaderKey
	memzero.Zero(st.SendHeaderKey)
	st.SendHeaderKey, st.ReceiveHeaderKey = st.NextSendHeaderKey, st.NextReceiveHeaderKey
	st.PeerDiffieHellmanPublic = h.DH

	rk, ckr, nhkr, err := kdfRKDH(st.RootKey, st.DiffieHellmanPrivate, h.DH)
	if err != nil {
		return err
	}
	memzero.ZeroAll(st.RootKey, st.ReceiveChainKey)
	st.RootKey, st.ReceiveChainKey, st.NextReceiveHeaderKey = rk, ckr, nhkr

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	rk, cks, nhks, err := kdfRKDH(st.RootKey, priv, h.DH)
	if err != nil {
		priv.Wipe()
		return err
	}
	memzero.ZeroAll(st.RootKey, st.SendChainKey)
	st.DiffieHellmanPrivate.Wipe()
	st.RootKey, st.SendChainKey, st.NextSendHeaderKey = rk, cks, nhks
	st.DiffieHellmanPrivate, st.DiffieHellmanPublic = priv, pub
	return nil
}

// SkippedKeys reports how many message keys are cached.
func SkippedKeys(st *domain.RatchetState) int { return len(st.SkippedKeys) }

// ForgetSkipped drops cached keys with N <= upTo, or all of them when upTo is nil.
func ForgetSkipped(st *domain.RatchetState, upTo *uint32) {
	for id, sk := range st.SkippedKeys {
		if upTo == nil || sk.N <= *upTo {
			memzero.ZeroAll(sk.MessageKey, sk.HeaderKey)
			delete(st.SkippedKeys, id)
		}
	}
}

// Clone returns a deep copy of st.
func Clone(st *domain.RatchetState) domain.RatchetState {
	out := *st
	out.RootKey = clone(st.RootKey)
	out.SendChainKey = clone(st.SendChainKey)
	out.ReceiveChainKey = clone(st.ReceiveChainKey)
	out.SendHeaderKey = clone(st.SendHeaderKey)
	out.ReceiveHeaderKey = clone(st.ReceiveHeaderKey)
	out.NextSendHeaderKey = clone(st.NextSendHeaderKey)
	out.NextReceiveHeaderKey = clone(st.NextReceiveHeaderKey)
	out.PreviousReceiveHeader = clone(st.PreviousReceiveHeader)
	out.SkippedKeys = make(map[string]domain.SkippedKey, len(st.SkippedKeys))
	for id, sk := range st.SkippedKeys {
		sk.HeaderKey = clone(sk.HeaderKey)
		sk.MessageKey = clone(sk.MessageKey)
		out.SkippedKeys[id] = sk
	}
	return out
}

// Wipe zeroes every secret held by st.
func Wipe(st *domain.RatchetState) {
	memzero.ZeroAll(
		st.RootKey,
		st.SendChainKey, st.ReceiveChainKey,
		st.SendHeaderKey, st.ReceiveHeaderKey,
		st.NextSendHeaderKey, st.NextReceiveHeaderKey,
		st.PreviousReceiveHeader,
	)
	st.DiffieHellmanPrivate.Wipe()
	ForgetSkipped(st, nil)
}

// --- helpers ---

func kdfRKDH(rk []byte, priv domain.X25519Private, pub domain.X25519Public) (newRK, ck, nhk []byte, err error) {
	dh, err := crypto.DH(priv, pub)
	if err != nil {
		return nil, nil, nil, err
	}
	defer memzero.Zero(dh[:])
	return kdfRK(rk, dh[:])
}

// kdfRK splits HKDF(salt=rk, ikm=dh) into root, chain and next header keys.
func kdfRK(rk, dh []byte) (newRK, ck, nhk []byte, err error) {
	out, err := crypto.HKDF(dh, rk, []byte(rootInfo), 3*keySize)
	if err != nil {
		return nil, nil, nil, err
	}
	return out[:keySize:keySize], out[keySize : 2*keySize : 2*keySize], out[2*keySize:], nil
}

func kdfCK(ck []byte) (nextCK, mk []byte) {
	return crypto.HMAC(ck, ckChainInput), crypto.HMAC(ck, ckMessageInput)
}

func openHeader(hk, ad []byte, msg domain.EncryptedMessage) (domain.RatchetHeader, bool) {
	if len(hk) == 0 {
		return domain.RatchetHeader{}, false
	}
	raw, err := crypto.Open(hk, msg.HeaderNonce, msg.HeaderCiphertext, ad)
	if err != nil {
		return domain.RatchetHeader{}, false
	}
	h, err := decodeHeader(raw)
	if err != nil {
		return domain.RatchetHeader{}, false
	}
	return h, true
}

func sealBody(mk, ad, plaintext []byte, msg *domain.EncryptedMessage) error {
	nonce, ct, err := crypto.Seal(mk, plaintext, bodyAD(ad, *msg))
	if err != nil {
		return err
	}
	cut := len(ct) - crypto.TagSize
	msg.BodyNonce = nonce
	msg.BodyCiphertext = ct[:cut:cut]
	msg.AuthTag = ct[cut:]
	return nil
}

func joinTag(msg domain.EncryptedMessage) []byte {
	out := make([]byte, 0, len(msg.BodyCiphertext)+len(msg.AuthTag))
	out = append(out, msg.BodyCiphertext...)
	return append(out, msg.AuthTag...)
}

func bodyAD(ad []byte, msg domain.EncryptedMessage) []byte {
	out := make([]byte, 0, len(ad)+len(msg.HeaderNonce)+len(msg.HeaderCiphertext))
	out = append(out, ad...)
	out = append(out, msg.HeaderNonce...)
	return append(out, msg.HeaderCiphertext...)
}

func encodeHeader(h domain.RatchetHeader) []byte {
	out := make([]byte, HeaderSize)
	copy(out, h.DH[:])
	binary.BigEndian.PutUint32(out[32:36], h.PN)
	binary.BigEndian.PutUint32(out[36:40], h.N)
	return out
}

var errHeaderLength = errors.New("ratchet: bad header length")

func decodeHeader(b []byte) (domain.RatchetHeader, error) {
	if len(b) != HeaderSize {
		return domain.RatchetHeader{}, errHeaderLength
	}
	var h domain.RatchetHeader
	copy(h.DH[:], b[:32])
	h.PN = binary.BigEndian.Uint32(b[32:36])
	h.N = binary.BigEndian.Uint32(b[36:40])
	return h, nil
}

func skippedKeyID(peer domain.X25519Public, n uint32) string {
	var b [32 + 4]byte
	copy(b[:], peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return hex.EncodeToString(b[:])
}

func containsKey(keys [][]byte, k []byte) bool {
	for _, x := range keys {
		if bytes.Equal(x, k) {
			return true
		}
	}
	return false
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// nonNil keeps an empty plaintext distinguishable from "no result".
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
