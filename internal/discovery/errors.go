package discovery

import "errors"

// Domain errors for the discovery package.
var (
	// ErrNoServices is returned when Listen is called without any service.
	ErrNoServices = errors.New("discovery: no services given")

	// ErrInvalidService is returned for an empty service name.
	ErrInvalidService = errors.New("discovery: invalid service name")

	// ErrUnregisteredService is returned when a service is not in the catalog.
	ErrUnregisteredService = errors.New("discovery: unregistered service")

	// ErrNilCallback is returned when a listener callback is nil.
	ErrNilCallback = errors.New("discovery: nil callback")

	// ErrInvalidComponent is returned for an empty component or platform name.
	ErrInvalidComponent = errors.New("discovery: invalid component")

	// ErrInvalidHandler is returned for a catalog handler that is incomplete for its kind.
	ErrInvalidHandler = errors.New("discovery: invalid handler")
)
