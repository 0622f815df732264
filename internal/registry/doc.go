// Package registry is the pre-key directory principals publish bundles to and
// initiators claim them from.
//
// Three implementations of domain.PreKeyRegistry live here:
//
//   - Memory keeps everything in process. Tests and single-host setups.
//   - Gorm persists bundles and one-time pre-keys through gorm, on SQLite or
//     PostgreSQL. Claims lock the row (FOR UPDATE SKIP LOCKED on PostgreSQL)
//     and stamp consumed_at, so a one-time pre-key is handed out at most once
//     even with several registry replicas.
//   - Client talks to a registry daemon over HTTP.
//
// NewRouter exposes any of them over HTTP:
//
//	GET  /healthz
//	GET  /metrics
//	POST /v1/bundles                    publish a PublishedBundle
//	POST /v1/bundles/{principal}/claim  claim a PreKeyBundle
//
// Error mapping: 400 malformed bundle, 404 unknown principal, 409 no one-time
// pre-key left in strict mode.
//
// The registry only ever sees public keys.
package registry
