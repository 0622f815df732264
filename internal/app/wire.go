package app

import (
	"log/slog"
	"net/http"
	"strings"

	"portseal/internal/domain"
	"portseal/internal/observability/logging"
	"portseal/internal/registry"
	"portseal/internal/services/identity"
	"portseal/internal/services/payload"
	sessionsvc "portseal/internal/services/session"
	"portseal/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Keystore *store.Keystore
	Identity *identity.Service
	Sessions *sessionsvc.Service
	Payload  *payload.Service
	Registry domain.PreKeyRegistry
	Log      *slog.Logger
	HTTP     *http.Client
}

// Open unseals the keystore in cfg.Home and builds the dependency graph.
func Open(cfg Config, passphrase string) (*Wire, error) {
	ks, err := store.OpenKeystore(cfg.Home, passphrase)
	if err != nil {
		return nil, err
	}
	return build(cfg, ks)
}

// Create makes a new keystore in cfg.Home and builds the dependency graph.
func Create(cfg Config, passphrase string) (*Wire, error) {
	kdf := cfg.KDF
	if kdf == "" {
		kdf = store.KDFScrypt
	}
	ks, err := store.CreateKeystore(cfg.Home, passphrase, kdf)
	if err != nil {
		return nil, err
	}
	return build(cfg, ks)
}

func build(cfg Config, ks *store.Keystore) (*Wire, error) {
	log := logging.NewLogger(logging.Config{
		ServiceName: "portseal",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	reg, err := newRegistry(cfg.RegistryURL, httpClient)
	if err != nil {
		ks.Close()
		return nil, err
	}

	// Sealed file stores
	identityStore := store.NewIdentityFileStore(ks)
	prekeyStore := store.NewPrekeyFileStore(ks)
	sessionStore := store.NewSessionFileStore(ks)

	// High-level services
	ids := identity.New(identityStore, prekeyStore)
	sessions := sessionsvc.New(ids, sessionStore, reg, log)

	return &Wire{
		Keystore: ks,
		Identity: ids,
		Sessions: sessions,
		Payload:  payload.New(sessions, log),
		Registry: reg,
		Log:      log,
		HTTP:     httpClient,
	}, nil
}

// newRegistry picks the HTTP client for http(s) URLs and talks to the
// registry tables directly otherwise.
func newRegistry(target string, httpClient *http.Client) (domain.PreKeyRegistry, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		c := registry.NewClient(target)
		c.HTTP = httpClient
		return c, nil
	}
	db, err := registry.OpenDB(target)
	if err != nil {
		return nil, err
	}
	return registry.NewGorm(db, registry.Options{}), nil
}

// Close wipes the master key.
func (w *Wire) Close() {
	if w.Keystore != nil {
		w.Keystore.Close()
	}
}
