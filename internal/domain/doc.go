// Package domain defines core data models and interfaces shared across portseal.
// It contains plain types (wire/state), contracts (interfaces) and the protocol
// error values only.
package domain
