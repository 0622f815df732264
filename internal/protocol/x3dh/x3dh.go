package x3dh

import (
	"errors"
	"fmt"

	"portseal/internal/crypto"
	"portseal/internal/domain"
	"portseal/internal/util/memzero"
)

const (
	// SharedSecretSize is the length of SK.
	SharedSecretSize = 32
	kdfInfo          = "portseal-x3dh"
)

// Result is the outcome of one side of the handshake.
type Result struct {
	// SK seeds the ratchet root key.
	SK []byte
	// AD is IK_initiator || IK_responder; both sides compute the same value.
	AD []byte

	SignedPreKeyID  domain.SignedPreKeyID
	OneTimePreKeyID domain.OneTimePreKeyID
	// EphemeralKey is the initiator's ephemeral public key.
	EphemeralKey domain.X25519Public
}

// Wipe zeroes SK.
func (r *Result) Wipe() { memzero.Zero(r.SK) }

// VerifySPK checks the bundle's signed pre-key signature against its
// signing key.
func VerifySPK(bundle domain.PreKeyBundle) error {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		return domain.ErrInvalidSignedPreKey
	}
	return nil
}

// InitiatorRoot runs X3DH as the initiator against a claimed bundle.
func InitiatorRoot(id domain.Identity, bundle domain.PreKeyBundle) (Result, error) {
	if err := bundle.Validate(); err != nil {
		return Result{}, err
	}
	if err := VerifySPK(bundle); err != nil {
		return Result{}, err
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return Result{}, err
	}
	defer ephPriv.Wipe()

	pairs := []dhPair{
		{id.XPriv, bundle.SignedPreKey}, // DH(IKA, SPKB)
		{ephPriv, bundle.IdentityKey},   // DH(EKA, IKB)
		{ephPriv, bundle.SignedPreKey},  // DH(EKA, SPKB)
	}
	res := Result{
		AD:             associatedData(id.XPub, bundle.IdentityKey),
		SignedPreKeyID: bundle.SignedPreKeyID,
		EphemeralKey:   ephPub,
	}
	if bundle.OneTimePreKey != nil {
		pairs = append(pairs, dhPair{ephPriv, bundle.OneTimePreKey.Pub}) // DH(EKA, OPKB)
		res.OneTimePreKeyID = bundle.OneTimePreKey.ID
	}

	res.SK, err = deriveSK(pairs)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// ResponderRoot mirrors InitiatorRoot. spkPriv is the signed pre-key named by
// msg; opkPriv is the consumed one-time pre-key, or nil when msg names none.
func ResponderRoot(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	msg domain.InitialMessage,
) (Result, error) {
	if msg.InitiatorIdentityKey.IsZero() || msg.EphemeralKey.IsZero() || msg.SignedPreKeyID == "" {
		return Result{}, fmt.Errorf("%w: initial message", domain.ErrMalformedBundle)
	}
	if msg.OneTimePreKeyID != "" && opkPriv == nil {
		return Result{}, domain.ErrPreKeyExhausted
	}
	if msg.OneTimePreKeyID == "" && opkPriv != nil {
		return Result{}, errUnexpectedOneTimePreKey
	}

	pairs := []dhPair{
		{spkPriv, msg.InitiatorIdentityKey}, // DH(SPKB, IKA)
		{id.XPriv, msg.EphemeralKey},        // DH(IKB, EKA)
		{spkPriv, msg.EphemeralKey},         // DH(SPKB, EKA)
	}
	if opkPriv != nil {
		pairs = append(pairs, dhPair{*opkPriv, msg.EphemeralKey}) // DH(OPKB, EKA)
	}

	sk, err := deriveSK(pairs)
	if err != nil {
		return Result{}, err
	}
	return Result{
		SK:              sk,
		AD:              associatedData(msg.InitiatorIdentityKey, id.XPub),
		SignedPreKeyID:  msg.SignedPreKeyID,
		OneTimePreKeyID: msg.OneTimePreKeyID,
		EphemeralKey:    msg.EphemeralKey,
	}, nil
}

var errUnexpectedOneTimePreKey = errors.New("x3dh: one-time pre-key supplied but not named by the initial message")

type dhPair struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

// deriveSK computes HKDF(0xFF*32 || DH1 || ... || DHn) with a zero salt.
func deriveSK(pairs []dhPair) ([]byte, error) {
	ikm := make([]byte, 32, 32*(len(pairs)+1))
	for i := range ikm {
		ikm[i] = 0xFF
	}
	defer func() { memzero.Zero(ikm) }()

	for _, p := range pairs {
		out, err := crypto.DH(p.priv, p.pub)
		if err != nil {
			return nil, err
		}
		ikm = append(ikm, out[:]...)
		memzero.Zero(out[:])
	}
	return crypto.HKDF(ikm, nil, []byte(kdfInfo), SharedSecretSize)
}

func associatedData(initiator, responder domain.X25519Public) []byte {
	ad := make([]byte, 0, 64)
	ad = append(ad, initiator[:]...)
	return append(ad, responder[:]...)
}
