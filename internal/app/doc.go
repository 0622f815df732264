// Package app wires application dependencies for the CLI.
//
// It loads Config from the environment, opens or creates the sealed keystore,
// and builds the concrete stores, registry client and high-level services,
// exposing them via the Wire struct for commands to use.
package app
