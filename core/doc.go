// Package core defines the domain model, contracts, error taxonomy, and
// configuration surface shared by the go-inbox ingestion packages.
//
// The package is dependency-light on purpose: stores, the resilience
// executor, and the webhook pipeline all depend on core, never on each
// other's concrete types.
package core
