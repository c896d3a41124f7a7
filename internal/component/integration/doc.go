// Package integration provides generic vendor integrations.
//
// An integration is registered with the loader under its component name.
// The dispatcher sets it up the first time one of its services is
// discovered; from then on it receives every discovery of those services
// and keeps a table of the devices it has seen. Integrations for catalog
// config-entry services are set up at start and pick up
// config_entry_discovered events addressed to their domain.
package integration
