// Package commands defines the portseal CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the keystore and the local identity
//   - fingerprint    Print the identity fingerprint
//   - publish        Mint pre-keys and publish the bundle to the registry
//   - start-session  Claim a peer's bundle and write the initial message
//   - accept         Accept an initial message and store the session
//   - sessions       List or delete stored sessions
//   - encrypt        Encrypt ports of a workflow input document
//   - decrypt        Decrypt ports of a workflow input document
//
// # Implementation
//
// Defaults come from PORTSEAL_* environment variables (and an optional .env
// file); flags override them. The root command unseals the keystore and
// builds the dependency graph (stores, services, registry client) before any
// subcommand runs, and wipes the master key afterwards. The passphrase may
// also be supplied as PORTSEAL_PASSPHRASE.
package commands
