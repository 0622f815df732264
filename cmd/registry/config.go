package main

import (
	"os"
	"strconv"
)

type config struct {
	Addr        string
	DatabaseURL string
	Strict      bool
	LogLevel    string
	Environment string
}

func loadConfig() config {
	strict, _ := strconv.ParseBool(getenv("REGISTRY_STRICT", "false"))
	return config{
		Addr:        getenv("REGISTRY_ADDR", ":8080"),
		DatabaseURL: getenv("REGISTRY_DATABASE_URL", ""),
		Strict:      strict,
		LogLevel:    getenv("REGISTRY_LOG_LEVEL", "info"),
		Environment: getenv("REGISTRY_ENV", "dev"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
