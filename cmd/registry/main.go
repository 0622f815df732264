package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"portseal/internal/domain"
	"portseal/internal/observability/logging"
	"portseal/internal/observability/metrics"
	"portseal/internal/registry"
)

const serviceName = "portseal-registry"

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister(serviceName)

	opts := registry.Options{RequireOneTimeKey: cfg.Strict}
	var reg domain.PreKeyRegistry
	if cfg.DatabaseURL == "" {
		reg = registry.NewMemory(opts)
		logger.Warn("no REGISTRY_DATABASE_URL; bundles are kept in memory only")
	} else {
		db, err := registry.OpenDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("registry db: %v", err)
		}
		reg = registry.NewGorm(db, opts)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           registry.NewRouter(reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("registry listening", "addr", cfg.Addr, "strict", cfg.Strict)
	log.Fatal(srv.ListenAndServe())
}
