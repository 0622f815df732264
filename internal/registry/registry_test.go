package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"portseal/internal/crypto"
	"portseal/internal/domain"
	"portseal/internal/registry"
)

func publishedBundle(t *testing.T, principal domain.PrincipalID, opks int) domain.PublishedBundle {
	t.Helper()
	_, ik, err := crypto.GenerateX25519()
	require.NoError(t, err)
	edPriv, edPub, err := crypto.GenerateEd25519()
	require.NoError(t, err)
	_, spk, err := crypto.GenerateX25519()
	require.NoError(t, err)

	b := domain.PublishedBundle{
		Principal:             principal,
		IdentityKey:           ik,
		SigningKey:            edPub,
		SignedPreKeyID:        "spk-1",
		SignedPreKey:          spk,
		SignedPreKeySignature: crypto.SignEd25519(edPriv, spk[:]),
	}
	for i := 0; i < opks; i++ {
		_, pub, err := crypto.GenerateX25519()
		require.NoError(t, err)
		b.OneTimePreKeys = append(b.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID(fmt.Sprintf("opk-%d", i)),
			Pub: pub,
		})
	}
	return b
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, registry.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// backends returns a fresh registry of every kind for the given options.
func backends(t *testing.T, opts registry.Options) map[string]domain.PreKeyRegistry {
	return map[string]domain.PreKeyRegistry{
		"memory": registry.NewMemory(opts),
		"gorm":   registry.NewGorm(openTestDB(t), opts),
		"http":   newHTTPRegistry(t, registry.NewMemory(opts)),
	}
}

func TestClaim_HandsOutEachOneTimeKeyOnce(t *testing.T) {
	ctx := context.Background()
	for name, reg := range backends(t, registry.Options{}) {
		t.Run(name, func(t *testing.T) {
			pub := publishedBundle(t, "bob", 3)
			require.NoError(t, reg.Publish(ctx, pub))

			seen := map[domain.OneTimePreKeyID]bool{}
			for i := 0; i < 3; i++ {
				b, err := reg.Claim(ctx, "bob")
				require.NoError(t, err)
				require.NotNil(t, b.OneTimePreKey)
				require.False(t, seen[b.OneTimePreKey.ID], "one-time pre-key %s handed out twice", b.OneTimePreKey.ID)
				seen[b.OneTimePreKey.ID] = true

				require.Equal(t, pub.IdentityKey, b.IdentityKey)
				require.Equal(t, pub.SigningKey, b.SigningKey)
				require.Equal(t, pub.SignedPreKey, b.SignedPreKey)
				require.Equal(t, pub.SignedPreKeySignature, b.SignedPreKeySignature)
				require.NoError(t, b.Validate())
			}

			// Exhausted: bundle without a one-time key.
			b, err := reg.Claim(ctx, "bob")
			require.NoError(t, err)
			require.Nil(t, b.OneTimePreKey)
			require.Equal(t, domain.SignedPreKeyID("spk-1"), b.SignedPreKeyID)
		})
	}
}

func TestClaim_UnknownPrincipal(t *testing.T) {
	ctx := context.Background()
	for name, reg := range backends(t, registry.Options{}) {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Claim(ctx, "nobody")
			require.ErrorIs(t, err, domain.ErrPrincipalNotFound)
		})
	}
}

func TestClaim_StrictModeRefusesWithoutOneTimeKey(t *testing.T) {
	ctx := context.Background()
	for name, reg := range backends(t, registry.Options{RequireOneTimeKey: true}) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, reg.Publish(ctx, publishedBundle(t, "bob", 1)))
			_, err := reg.Claim(ctx, "bob")
			require.NoError(t, err)
			_, err = reg.Claim(ctx, "bob")
			require.ErrorIs(t, err, domain.ErrPreKeyExhausted)
		})
	}
}

func TestPublish_RejectsMalformed(t *testing.T) {
	ctx := context.Background()
	for name, reg := range backends(t, registry.Options{}) {
		t.Run(name, func(t *testing.T) {
			b := publishedBundle(t, "bob", 0)
			b.SignedPreKeySignature = b.SignedPreKeySignature[:10]
			require.ErrorIs(t, reg.Publish(ctx, b), domain.ErrMalformedBundle)

			b = publishedBundle(t, "", 0)
			require.ErrorIs(t, reg.Publish(ctx, b), domain.ErrMalformedBundle)
		})
	}
}

func TestPublish_RepublishDoesNotResurrectConsumedKeys(t *testing.T) {
	ctx := context.Background()
	for name, reg := range backends(t, registry.Options{}) {
		t.Run(name, func(t *testing.T) {
			pub := publishedBundle(t, "bob", 2)
			require.NoError(t, reg.Publish(ctx, pub))

			first, err := reg.Claim(ctx, "bob")
			require.NoError(t, err)
			require.NotNil(t, first.OneTimePreKey)

			// Same batch again plus a rotated signed pre-key.
			_, spk, err := crypto.GenerateX25519()
			require.NoError(t, err)
			pub.SignedPreKeyID = "spk-2"
			pub.SignedPreKey = spk
			require.NoError(t, reg.Publish(ctx, pub))

			second, err := reg.Claim(ctx, "bob")
			require.NoError(t, err)
			require.NotNil(t, second.OneTimePreKey)
			require.NotEqual(t, first.OneTimePreKey.ID, second.OneTimePreKey.ID)
			require.Equal(t, domain.SignedPreKeyID("spk-2"), second.SignedPreKeyID)

			third, err := reg.Claim(ctx, "bob")
			require.NoError(t, err)
			require.Nil(t, third.OneTimePreKey)
		})
	}
}

func TestMemory_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory(registry.Options{RequireOneTimeKey: true})
	require.NoError(t, reg.Publish(ctx, publishedBundle(t, "bob", 50)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[domain.OneTimePreKeyID]int{}
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := reg.Claim(ctx, "bob")
			if err != nil {
				return
			}
			mu.Lock()
			seen[b.OneTimePreKey.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, 50)
	for id, n := range seen {
		require.Equal(t, 1, n, "key %s claimed %d times", id, n)
	}
	require.Zero(t, reg.Remaining("bob"))
}

func TestGorm_Remaining(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewGorm(openTestDB(t), registry.Options{})
	require.NoError(t, reg.Publish(ctx, publishedBundle(t, "bob", 4)))

	_, err := reg.Claim(ctx, "bob")
	require.NoError(t, err)

	n, err := reg.Remaining(ctx, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}
