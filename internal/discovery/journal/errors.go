package journal

import "errors"

var (
	// ErrNotFound is returned when no entry exists for a fingerprint.
	ErrNotFound = errors.New("journal: entry not found")

	// ErrInvalidSighting is returned for a sighting without fingerprint or service.
	ErrInvalidSighting = errors.New("journal: sighting needs fingerprint and service")
)
