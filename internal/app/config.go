package app

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"portseal/internal/store"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home        string       // keystore directory, e.g. $HOME/.portseal
	RegistryURL string       // registry base URL, or a database DSN to use the registry tables directly
	Principal   string       // our name in the registry
	KDF         store.KDF    // passphrase KDF for new keystores
	LogLevel    string       // debug, info, warn, error
	Environment string       // free-form, tagged on every log line
	HTTP        *http.Client // optional; defaults to http.DefaultClient
}

// LoadConfig reads PORTSEAL_* variables, after loading an optional .env file
// from the working directory. Flags override the result.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Home:        getenv("PORTSEAL_HOME", defaultHome()),
		RegistryURL: getenv("PORTSEAL_REGISTRY", "http://127.0.0.1:8080"),
		Principal:   getenv("PORTSEAL_PRINCIPAL", ""),
		KDF:         store.KDF(strings.ToLower(getenv("PORTSEAL_KDF", string(store.KDFScrypt)))),
		LogLevel:    getenv("PORTSEAL_LOG_LEVEL", "warn"),
		Environment: getenv("PORTSEAL_ENV", "dev"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultHome() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ".portseal"
	}
	return filepath.Join(h, ".portseal")
}
