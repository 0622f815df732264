package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portseal/internal/crypto"
	"portseal/internal/domain"
)

// BundleRecord is the signed half of a principal's published bundle.
type BundleRecord struct {
	Principal      string    `gorm:"type:text;primaryKey"`
	IdentityKey    string    `gorm:"type:text;not null"`
	SigningKey     string    `gorm:"type:text;not null"`
	SignedPreKeyID string    `gorm:"type:text;not null"`
	SignedPreKey   string    `gorm:"type:text;not null"`
	Signature      string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime"`
}

// OneTimePreKeyRecord is one published one-time pre-key. ConsumedAt is set
// when a claim hands it out; consumed rows are kept so a republish cannot
// resurrect them.
type OneTimePreKeyRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Principal  string     `gorm:"type:text;not null;uniqueIndex:idx_opk_principal_key"`
	KeyID      string     `gorm:"type:text;not null;uniqueIndex:idx_opk_principal_key"`
	PublicKey  string     `gorm:"type:text;not null"`
	ConsumedAt *time.Time `gorm:"type:timestamptz;index"`
	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"`
}

// OpenDB opens dsn with the PostgreSQL driver for postgres:// URLs and
// key=value DSNs, and with SQLite otherwise, then migrates the schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&BundleRecord{}, &OneTimePreKeyRecord{}); err != nil {
		return fmt.Errorf("migrate registry db: %w", err)
	}
	return nil
}

// Gorm is a database-backed registry.
type Gorm struct {
	db   *gorm.DB
	opts Options
}

func NewGorm(db *gorm.DB, opts Options) *Gorm { return &Gorm{db: db, opts: opts} }

var _ domain.PreKeyRegistry = (*Gorm)(nil)

func (g *Gorm) Publish(ctx context.Context, b domain.PublishedBundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Principal == "" {
		return errNoPrincipal
	}
	rec := BundleRecord{
		Principal:      b.Principal.String(),
		IdentityKey:    crypto.B64(b.IdentityKey.Slice()),
		SigningKey:     crypto.B64(b.SigningKey.Slice()),
		SignedPreKeyID: b.SignedPreKeyID.String(),
		SignedPreKey:   crypto.B64(b.SignedPreKey.Slice()),
		Signature:      crypto.B64(b.SignedPreKeySignature),
	}
	opks := make([]OneTimePreKeyRecord, 0, len(b.OneTimePreKeys))
	for _, k := range b.OneTimePreKeys {
		if k.ID == "" || k.Pub.IsZero() {
			return fmt.Errorf("%w: one-time pre-key", domain.ErrMalformedBundle)
		}
		opks = append(opks, OneTimePreKeyRecord{
			ID:        uuid.New(),
			Principal: rec.Principal,
			KeyID:     k.ID.String(),
			PublicKey: crypto.B64(k.Pub.Slice()),
		})
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "principal"}},
			DoUpdates: clause.Assignments(map[string]any{
				"identity_key":      rec.IdentityKey,
				"signing_key":       rec.SigningKey,
				"signed_pre_key_id": rec.SignedPreKeyID,
				"signed_pre_key":    rec.SignedPreKey,
				"signature":         rec.Signature,
				"updated_at":        time.Now().UTC(),
			}),
		}).Create(&rec).Error
		if err != nil {
			return err
		}
		if len(opks) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&opks).Error
	})
}

// Claim retries a few times when another claimer stamps the same row first;
// SQLite has no SKIP LOCKED, so that race is possible there.
func (g *Gorm) Claim(ctx context.Context, principal domain.PrincipalID) (domain.PreKeyBundle, error) {
	var (
		out domain.PreKeyBundle
		err error
	)
	for i := 0; i < 3; i++ {
		out, err = g.claimOnce(ctx, principal)
		if !errors.Is(err, errClaimRace) {
			return out, err
		}
	}
	return domain.PreKeyBundle{}, err
}

func (g *Gorm) claimOnce(ctx context.Context, principal domain.PrincipalID) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec BundleRecord
		if err := tx.First(&rec, "principal = ?", principal.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPrincipalNotFound
			}
			return err
		}
		bundle, err := rec.toDomain()
		if err != nil {
			return err
		}

		var key OneTimePreKeyRecord
		err = tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("principal = ? AND consumed_at IS NULL", rec.Principal).
			Order("created_at ASC, id ASC").
			First(&key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if g.opts.RequireOneTimeKey {
				return domain.ErrPreKeyExhausted
			}
			out = bundle.Claim(nil)
			return nil
		case err != nil:
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&OneTimePreKeyRecord{}).
			Where("id = ? AND consumed_at IS NULL", key.ID).
			Update("consumed_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimRace
		}
		pub, err := decodeKey(key.PublicKey)
		if err != nil {
			return err
		}
		out = bundle.Claim(&domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID(key.KeyID),
			Pub: domain.X25519Public(pub),
		})
		return nil
	})
	return out, err
}

// Remaining reports how many unconsumed one-time pre-keys principal has.
func (g *Gorm) Remaining(ctx context.Context, principal domain.PrincipalID) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&OneTimePreKeyRecord{}).
		Where("principal = ? AND consumed_at IS NULL", principal.String()).
		Count(&n).Error
	return n, err
}

func (r BundleRecord) toDomain() (domain.PublishedBundle, error) {
	ik, err := decodeKey(r.IdentityKey)
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	sk, err := decodeKey(r.SigningKey)
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	spk, err := decodeKey(r.SignedPreKey)
	if err != nil {
		return domain.PublishedBundle{}, err
	}
	sig, err := crypto.FromB64(r.Signature)
	if err != nil {
		return domain.PublishedBundle{}, fmt.Errorf("decode signature: %w", err)
	}
	return domain.PublishedBundle{
		Principal:             domain.PrincipalID(r.Principal),
		IdentityKey:           domain.X25519Public(ik),
		SigningKey:            domain.Ed25519Public(sk),
		SignedPreKeyID:        domain.SignedPreKeyID(r.SignedPreKeyID),
		SignedPreKey:          domain.X25519Public(spk),
		SignedPreKeySignature: sig,
	}, nil
}

func decodeKey(s string) ([32]byte, error) {
	var out [32]byte
	b, err := crypto.FromB64(s)
	if err != nil {
		return out, fmt.Errorf("decode key: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("decode key: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
