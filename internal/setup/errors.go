package setup

import "errors"

// Domain errors for the setup package.
//
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnregisteredComponent is returned when setup is requested for a
	// component nobody registered.
	ErrUnregisteredComponent = errors.New("setup: unregistered component")

	// ErrSetupFailed wraps an error returned (or panic raised) by a setup function.
	ErrSetupFailed = errors.New("setup: component setup failed")

	// ErrDependencyCycle is returned when component dependencies form a cycle.
	ErrDependencyCycle = errors.New("setup: dependency cycle")

	// ErrAlreadyRegistered is returned when a component name is registered twice.
	ErrAlreadyRegistered = errors.New("setup: component already registered")

	// ErrInvalidComponent is returned when a component has no name or setup function.
	ErrInvalidComponent = errors.New("setup: invalid component")
)
