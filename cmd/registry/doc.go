// Package main runs the portseal pre-key registry daemon.
//
// It stores published pre-key bundles and hands each one-time pre-key to at
// most one initiator. State lives in memory, or in SQLite/PostgreSQL through
// gorm when REGISTRY_DATABASE_URL is set.
//
// HTTP API
//
//	POST /v1/bundles
//	    Store a principal's PublishedBundle (identity keys, signed pre-key and
//	    signature, one-time pre-keys). One-time keys already seen are ignored.
//
//	POST /v1/bundles/{principal}/claim
//	    Return a PreKeyBundle carrying one unused one-time pre-key, consuming
//	    it. With none left the bundle omits it, or 409 in strict mode.
//
//	GET /healthz, GET /metrics
//
// Environment
//
//	REGISTRY_ADDR          listen address (default :8080)
//	REGISTRY_DATABASE_URL  sqlite path or postgres DSN; empty keeps state in memory
//	REGISTRY_STRICT        "true" refuses claims once one-time keys run out
//	REGISTRY_LOG_LEVEL     debug, info, warn or error (default info)
//	REGISTRY_ENV           tagged on every log line (default dev)
//
// The registry never sees plaintext or private keys; it only stores public
// bundles.
package main
